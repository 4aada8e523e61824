package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/metrics"
)

// envPrefix is prepended to every setting read from the environment, so
// --output-dir may also be given as SDV_ADMIN_OUTPUT_DIR.
const envPrefix = "SDV_ADMIN"

var (
	rootCmd *cobra.Command

	v = viper.New()
)

func init() {
	rootCmd = &cobra.Command{
		Use:               "sdv-admin",
		Short:             "tools for managing project IAM role bindings and MTK Connect API keys",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	cobra.CheckErr(bindFlags(v, rootCmd))

	initAccessCmd()
	initRotateCmd()
	initDisableCmd()
	initMtkCmd()
}

// bindFlags defines the global flags on c and binds them and their
// SDV_ADMIN_* environment variables to v.
func bindFlags(v *viper.Viper, c *cobra.Command) error {
	flags := c.PersistentFlags()
	flags.String("config", "", "YAML configuration file; without one a configuration is built from the flags")
	flags.String("project", "", "Google Cloud project whose IAM policy is managed")
	flags.String("domain", "", "domain of the MTK Connect installation")
	flags.String("namespace", "mtk-connect", "namespace of the cluster secret holding the MTK Connect key")
	flags.String("secret", "mtk-connect-key", "name of the cluster secret holding the MTK Connect key")
	flags.String("output-dir", "", "directory the access commands write their result files to")
	flags.String("format", "", "format of the result files: json or text")
	flags.Bool("dry-run", false, "a dry-run describes what would happen without doing it")
	flags.Bool("force", false, "rotate secrets even when they are not due")
	flags.BoolP("verbose", "v", false, "log debug messages in a human-friendly format")
	flags.String("metrics-file", "", "write run metrics to this file on exit")
	flags.Bool("login", true, "run the gcloud login flow when no application default credentials are found")

	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// setup runs before every command. It puts the logger and the loaded
// configuration into the command context.
func setup(cmd *cobra.Command, args []string) error {
	s := readSettings(v)

	logger := config.ProductionLogger()
	if s.Verbose {
		logger = config.DevelopmentLogger()
	}
	ctx := config.WithLogger(cmd.Context(), logger)

	a, err := newApp(s)
	if err != nil {
		return err
	}

	cmd.SetContext(withApp(ctx, a))
	return nil
}

// Execute runs the command line and exits non-zero on failure. The metrics
// file is written whether the command worked or not.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())

	if path := v.GetString("metrics-file"); path != "" {
		if merr := metrics.WriteFile(path); merr != nil {
			config.LoggerFrom(context.Background()).Sugar().Errorw(
				"failed to write metrics",
				"metrics_file", path,
				"error", merr,
			)
		}
	}

	cobra.CheckErr(err)
}
