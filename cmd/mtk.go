package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin/mtkconnect"
	"github.com/zostay/sdv-admin/pkg/rotate"
	"github.com/zostay/sdv-admin/pkg/secret"
)

var (
	mtkCmd     *cobra.Command
	userFilter string
)

func initMtkCmd() {
	mtkCmd = &cobra.Command{
		Use:   "mtk",
		Short: "query the MTK Connect API with the rotated key",
	}

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "list the users matching a filter",
		Args:  cobra.NoArgs,
		RunE: mtkRun(func(ctx context.Context, api *mtkconnect.API, _ *mtkconnect.User) (any, error) {
			return api.QueryUsers(ctx, userFilter)
		}),
	}
	usersCmd.Flags().StringVar(&userFilter, "filter", "", "only list users matching this filter")

	mtkCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "show the MTK Connect version",
			Args:  cobra.NoArgs,
			RunE: mtkRun(func(ctx context.Context, api *mtkconnect.API, _ *mtkconnect.User) (any, error) {
				return api.GetVersion(ctx)
			}),
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "show the user owning the key",
			Args:  cobra.NoArgs,
			RunE: mtkRun(func(ctx context.Context, api *mtkconnect.API, u *mtkconnect.User) (any, error) {
				return u, nil
			}),
		},
		&cobra.Command{
			Use:   "keys",
			Short: "list the API keys of the user owning the key",
			Args:  cobra.NoArgs,
			RunE: mtkRun(func(ctx context.Context, api *mtkconnect.API, u *mtkconnect.User) (any, error) {
				return api.ListAPIKeys(ctx, u.ID)
			}),
		},
		usersCmd,
	)

	rootCmd.AddCommand(mtkCmd)
}

// mtkQuery asks the API for something to print. It gets the user owning the
// credentials.
type mtkQuery func(ctx context.Context, api *mtkconnect.API, u *mtkconnect.User) (any, error)

func mtkRun(q mtkQuery) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		api, err := mtkAPI(ctx, appFrom(ctx))
		if err != nil {
			return err
		}

		u, err := api.CurrentUser(ctx)
		if err != nil {
			return err
		}

		out, err := q(ctx, api, u)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), out)
	}
}

// mtkAPI returns an API client using the client of the first rotation. The
// credentials come from SDV_ADMIN_MTK_USERNAME and SDV_ADMIN_MTK_KEY when both
// are set, and otherwise from the storage of the first secret rotated.
func mtkAPI(ctx context.Context, a *app) (*mtkconnect.API, error) {
	if len(a.config.Rotations) == 0 {
		return nil, fmt.Errorf("no rotation is configured for an MTK Connect client")
	}
	r := &a.config.Rotations[0]

	inst, err := a.plugins.Instance(ctx, r.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to load MTK Connect client: %w", err)
	}

	mc, ok := inst.(*mtkconnect.Client)
	if !ok {
		return nil, fmt.Errorf("plugin %q is not an MTK Connect client, got %T", r.Client, inst)
	}

	if a.MTKUsername != "" && a.MTKKey != "" {
		return mc.API(secret.Map{
			mtkconnect.UsernameKey: a.MTKUsername,
			mtkconnect.KeyKey:      a.MTKKey,
		})
	}

	secrets, err := a.findSecretSet(r.SecretSet)
	if err != nil {
		return nil, err
	}
	if len(secrets) == 0 {
		return nil, fmt.Errorf("secret set %q has no secrets", r.SecretSet)
	}

	config.LoggerFrom(ctx).Sugar().Debugw(
		"reading MTK Connect credentials from storage",
		"secret", secrets[0].Name(),
	)

	current, err := rotate.LoadCurrent(ctx, a.plugins, &secrets[0])
	if err != nil {
		return nil, err
	}

	return mc.API(current)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
