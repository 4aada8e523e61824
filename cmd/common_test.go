package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin/kubernetes"
	"github.com/zostay/sdv-admin/pkg/plugin/mtkconnect"
)

func testSettings(t *testing.T, args ...string) settings {
	t.Helper()

	tv := viper.New()
	c := &cobra.Command{Use: "test"}
	require.NoError(t, bindFlags(tv, c))
	require.NoError(t, c.PersistentFlags().Parse(args))
	return readSettings(tv)
}

func TestReadSettingsDefaults(t *testing.T) {
	s := testSettings(t)
	assert.Equal(t, "mtk-connect", s.Namespace)
	assert.Equal(t, "mtk-connect-key", s.Secret)
	assert.True(t, s.Login)
	assert.False(t, s.DryRun)
	assert.Empty(t, s.ConfigFile)
}

func TestReadSettingsFlagsAndEnv(t *testing.T) {
	t.Setenv("SDV_ADMIN_OUTPUT_DIR", "/tmp/out")
	t.Setenv("SDV_ADMIN_DRY_RUN", "true")
	t.Setenv("SDV_ADMIN_MTK_USERNAME", "svc-sdv")
	t.Setenv("SDV_ADMIN_MTK_KEY", "abc123")

	s := testSettings(t, "--project", "sdv-dev", "--domain", "dev.example.com", "--format=text")
	assert.Equal(t, "sdv-dev", s.Project)
	assert.Equal(t, "dev.example.com", s.Domain)
	assert.Equal(t, config.FormatText, s.Format)
	assert.Equal(t, "/tmp/out", s.OutputDir, "read from the environment")
	assert.True(t, s.DryRun, "read from the environment")
	assert.Equal(t, "svc-sdv", s.MTKUsername)
	assert.Equal(t, "abc123", s.MTKKey)
}

func TestSynthesizeConfig(t *testing.T) {
	c, err := synthesizeConfig(settings{
		Domain:    "dev.example.com",
		Namespace: "mtk",
		Secret:    "api-key",
		Project:   "sdv-dev",
	})
	require.NoError(t, err)

	mtk := c.Plugins[mtkPluginName]
	assert.Equal(t, reflect.TypeOf(mtkconnect.Client{}).PkgPath(), mtk.Package)
	assert.Equal(t, "dev.example.com", mtk.String("domain", ""))
	assert.Equal(t, mtkPluginName, mtk.Name, "names are filled in")

	cluster := c.Plugins[clusterPluginName]
	assert.Equal(t, reflect.TypeOf(kubernetes.Client{}).PkgPath(), cluster.Package)

	require.Len(t, c.Rotations, 1)
	require.Len(t, c.Disablements, 1)

	ss, err := c.FindSecretSet(c.Rotations[0].SecretSet)
	require.NoError(t, err)
	require.Len(t, ss.Secrets, 1)
	require.Len(t, ss.Secrets[0].Storages, 1)

	sm := ss.Secrets[0].Storages[0]
	assert.Equal(t, "mtk/api-key", sm.Name())
	assert.Equal(t, config.KeyMap{
		mtkconnect.UsernameKey: usernameStoreKey,
		mtkconnect.KeyKey:      keyStoreKey,
	}, sm.Keys)

	assert.Equal(t, "sdv-dev", c.Access.Project)
	assert.Equal(t, ".", c.Access.OutputDir, "defaults are filled in")
	assert.Equal(t, config.FormatJSON, c.Access.Format)
}

const testConfig = `
plugins:
  MTK:
    package: github.com/zostay/sdv-admin/pkg/plugin/mtkconnect
    options:
      domain: dev.example.com
  cluster:
    package: github.com/zostay/sdv-admin/pkg/plugin/kubernetes
rotations:
  - client: mtk
    rotate_after: 720h
    secret_set: keys
secret_sets:
  - name: keys
    secrets:
      - secret: svc-sdv
        storages:
          - storage: cluster
            name: mtk-connect/key
            keys:
              MTK_CONNECT_USERNAME: user
              MTK_CONNECT_KEY: key
access:
  project: from-file
  format: text
`

func TestNewAppConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdv-admin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	a, err := newApp(settings{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", a.config.Access.Project)
	assert.Equal(t, config.FormatText, a.config.Access.Format)
	assert.Len(t, a.config.Rotations, 1)
	assert.Empty(t, a.config.Disablements, "nothing is synthesized next to a file")

	a, err = newApp(settings{ConfigFile: path, Project: "from-flag", OutputDir: "out"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", a.config.Access.Project, "flags win")
	assert.Equal(t, "out", a.config.Access.OutputDir)
	assert.Equal(t, config.FormatText, a.config.Access.Format, "unset flags leave the file alone")
}

func TestNewAppSadConfigFile(t *testing.T) {
	_, err := newApp(settings{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "failed to open configuration file")
}

func TestMtkAPIFromEnvironmentCredentials(t *testing.T) {
	var gotUser, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotKey, _ = r.BasicAuth()
		assert.Equal(t, "/mtk-connect/api/v1/users/current", r.URL.Path)
		_ = json.NewEncoder(w).Encode(mtkconnect.User{ID: "u-1", Username: gotUser})
	}))
	t.Cleanup(srv.Close)

	a, err := newApp(settings{
		Domain:      srv.URL,
		Namespace:   "mtk-connect",
		Secret:      "mtk-connect-key",
		MTKUsername: "svc-sdv",
		MTKKey:      "abc123",
	})
	require.NoError(t, err)

	ctx := context.Background()
	api, err := mtkAPI(ctx, a)
	require.NoError(t, err)

	u, err := api.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "svc-sdv", gotUser)
	assert.Equal(t, "abc123", gotKey)
}

func TestMtkAPISadNoRotation(t *testing.T) {
	a := &app{config: &config.Config{}}
	_, err := mtkAPI(context.Background(), a)
	assert.ErrorContains(t, err, "no rotation is configured")
}

func TestAppFromPanicsWithoutSetup(t *testing.T) {
	assert.Panics(t, func() { appFrom(context.Background()) })

	a := &app{}
	assert.Same(t, a, appFrom(withApp(context.Background(), a)))
}
