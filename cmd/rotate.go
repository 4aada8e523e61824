package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/rotate"
)

var (
	rotateCmd   *cobra.Command
	alsoDisable bool
)

func initRotateCmd() {
	rotateCmd = &cobra.Command{
		Use:   "rotate",
		Short: "rotate the MTK Connect API key and update the cluster secret holding it",
		Args:  cobra.NoArgs,
		RunE:  RunRotation,
	}

	rotateCmd.Flags().BoolVar(&alsoDisable, "also-disable", false, "after rotating keys, delete any old API keys left behind")

	rootCmd.AddCommand(rotateCmd)
}

// RunRotation runs every configured rotation. The first rotation that fails
// stops the run.
func RunRotation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := appFrom(ctx)
	logger := config.LoggerFrom(ctx).Sugar()

	for i := range a.config.Rotations {
		r := &a.config.Rotations[i]
		if err := runRotation(ctx, a, r); err != nil {
			logger.Errorw(
				"failed to complete secret rotation",
				"client_name", r.Client,
				"secret_set", r.SecretSet,
				"error", err,
			)
			return err
		}
	}

	if alsoDisable {
		return RunDisable(cmd, args)
	}

	return nil
}

func runRotation(ctx context.Context, a *app, r *config.Rotation) error {
	inst, err := a.plugins.Instance(ctx, r.Client)
	if err != nil {
		return fmt.Errorf("failed to load rotation client: %w", err)
	}

	rc, ok := inst.(rotate.Client)
	if !ok {
		return fmt.Errorf("plugin %q is not a rotation client, got %T", r.Client, inst)
	}

	secrets, err := a.findSecretSet(r.SecretSet)
	if err != nil {
		return err
	}

	m := rotate.New(
		rc,
		r.RotateAfter,
		a.DryRun,
		a.Force,
		a.plugins,
		secrets,
	)

	return m.RotateSecrets(ctx)
}
