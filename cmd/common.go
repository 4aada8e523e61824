package cmd

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/viper"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
	_ "github.com/zostay/sdv-admin/pkg/plugin/github"
	"github.com/zostay/sdv-admin/pkg/plugin/kubernetes"
	"github.com/zostay/sdv-admin/pkg/plugin/mtkconnect"
)

// Names used by the configuration built from flags.
const (
	mtkPluginName     = "mtk"
	clusterPluginName = "cluster"
	mtkSecretSetName  = "mtk"

	// storage keys of the cluster secret
	usernameStoreKey = "username"
	keyStoreKey      = "password"
)

// settings holds the flag and environment values of one run.
type settings struct {
	ConfigFile  string
	Project     string
	Domain      string
	Namespace   string
	Secret      string
	OutputDir   string
	Format      string
	DryRun      bool
	Force       bool
	Verbose     bool
	MetricsFile string
	Login       bool

	// MTK Connect credentials for the mtk commands, environment only
	MTKUsername string
	MTKKey      string
}

func readSettings(v *viper.Viper) settings {
	return settings{
		ConfigFile:  v.GetString("config"),
		Project:     v.GetString("project"),
		Domain:      v.GetString("domain"),
		Namespace:   v.GetString("namespace"),
		Secret:      v.GetString("secret"),
		OutputDir:   v.GetString("output-dir"),
		Format:      v.GetString("format"),
		DryRun:      v.GetBool("dry-run"),
		Force:       v.GetBool("force"),
		Verbose:     v.GetBool("verbose"),
		MetricsFile: v.GetString("metrics-file"),
		Login:       v.GetBool("login"),
		MTKUsername: v.GetString("mtk-username"),
		MTKKey:      v.GetString("mtk-key"),
	}
}

// app is everything a command needs: the settings, the configuration, and the
// plugins it configures.
type app struct {
	settings

	config  *config.Config
	plugins *plugin.Manager
}

type appKey struct{}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(ctx context.Context) *app {
	a, ok := ctx.Value(appKey{}).(*app)
	if !ok {
		panic("command context was not set up")
	}
	return a
}

// newApp loads the configuration file, or builds one from the flags when no
// file is given. Flags given explicitly override the access settings of the
// file.
func newApp(s settings) (*app, error) {
	var (
		c   *config.Config
		err error
	)
	if s.ConfigFile != "" {
		c, err = config.Load(s.ConfigFile)
	} else {
		c, err = synthesizeConfig(s)
	}
	if err != nil {
		return nil, err
	}

	if s.Project != "" {
		c.Access.Project = s.Project
	}
	if s.OutputDir != "" {
		c.Access.OutputDir = s.OutputDir
	}
	if s.Format != "" {
		c.Access.Format = s.Format
	}

	return &app{
		settings: s,
		config:   c,
		plugins:  plugin.NewManager(c.Plugins),
	}, nil
}

// synthesizeConfig describes a single MTK Connect key rotated into one cluster
// secret.
func synthesizeConfig(s settings) (*config.Config, error) {
	c := &config.Config{
		Plugins: config.PluginList{
			mtkPluginName: {
				Package: reflect.TypeOf(mtkconnect.Client{}).PkgPath(),
				Options: map[string]any{"domain": s.Domain},
			},
			clusterPluginName: {
				Package: reflect.TypeOf(kubernetes.Client{}).PkgPath(),
				Options: map[string]any{"namespace": s.Namespace},
			},
		},
		Rotations: []config.Rotation{
			{Client: mtkPluginName, SecretSet: mtkSecretSetName},
		},
		Disablements: []config.Disablement{
			{Client: mtkPluginName, SecretSet: mtkSecretSetName},
		},
		SecretSets: []config.SecretSet{
			{
				Name: mtkSecretSetName,
				Secrets: []config.Secret{
					{
						SecretName: s.Secret,
						Storages: []config.StorageMap{
							{
								StorageClient: clusterPluginName,
								StorageName:   s.Namespace + "/" + s.Secret,
								Keys: config.KeyMap{
									mtkconnect.UsernameKey: usernameStoreKey,
									mtkconnect.KeyKey:      keyStoreKey,
								},
							},
						},
					},
				},
			},
		},
		Access: config.Access{
			Project:   s.Project,
			OutputDir: s.OutputDir,
			Format:    s.Format,
		},
	}

	if err := c.Prepare(); err != nil {
		return nil, fmt.Errorf("flags do not describe a valid configuration: %w", err)
	}
	return c, nil
}

// findSecretSet returns the secrets of the named set.
func (a *app) findSecretSet(name string) ([]config.Secret, error) {
	ss, err := a.config.FindSecretSet(name)
	if err != nil {
		return nil, err
	}
	return ss.Secrets, nil
}
