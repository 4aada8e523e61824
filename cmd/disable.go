package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/disable"
	"github.com/zostay/sdv-admin/pkg/errors"
)

var disableCmd *cobra.Command

func initDisableCmd() {
	disableCmd = &cobra.Command{
		Use:   "disable",
		Short: "delete old MTK Connect API keys left active after rotation",
		Args:  cobra.NoArgs,
		RunE:  RunDisable,
	}

	rootCmd.AddCommand(disableCmd)
}

// RunDisable runs every configured disablement. A failing disablement does not
// stop the others.
func RunDisable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := appFrom(ctx)
	logger := config.LoggerFrom(ctx).Sugar()

	errs := errors.NewAggregate(nil)
	for i := range a.config.Disablements {
		d := &a.config.Disablements[i]
		if err := runDisablement(ctx, a, d); err != nil {
			logger.Errorw(
				"failed to complete secret disablement",
				"client_name", d.Client,
				"secret_set", d.SecretSet,
				"error", err,
			)
			errs.Add(err)
		}
	}

	return errs.ErrorOrNil()
}

func runDisablement(ctx context.Context, a *app, d *config.Disablement) error {
	inst, err := a.plugins.Instance(ctx, d.Client)
	if err != nil {
		return fmt.Errorf("failed to load disablement client: %w", err)
	}

	dc, ok := inst.(disable.Client)
	if !ok {
		return fmt.Errorf("plugin %q is not a disablement client, got %T", d.Client, inst)
	}

	secrets, err := a.findSecretSet(d.SecretSet)
	if err != nil {
		return err
	}

	m := disable.New(
		dc,
		d.DisableAfter,
		a.DryRun,
		a.plugins,
		secrets,
	)

	return m.DisableSecrets(ctx)
}
