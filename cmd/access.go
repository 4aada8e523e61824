package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zostay/sdv-admin/pkg/access"
	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/gcpauth"
)

var (
	accessCmd      *cobra.Command
	operationsList string
)

func initAccessCmd() {
	accessCmd = &cobra.Command{
		Use:   "access",
		Short: "manage the IAM role bindings of a Google Cloud project",
		Args:  cobra.NoArgs,
		RunE:  RunOperationsList,
	}

	accessCmd.Flags().StringVarP(&operationsList, "operations-list", "o", "", "JSON or YAML file listing the operations to perform")

	opCmd := func(use, short string, op access.Operation, nargs cobra.PositionalArgs, req func([]string) access.Request) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  nargs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), op, req(args))
			},
		}
	}

	none := func([]string) access.Request { return access.Request{} }

	accessCmd.AddCommand(
		opCmd("users", "list every user with their roles", access.GetAllUsers, cobra.NoArgs, none),
		opCmd("user EMAIL", "list the roles of a user", access.GetUser, cobra.ExactArgs(1),
			func(args []string) access.Request { return access.Request{User: args[0]} }),
		opCmd("roles", "list every predefined role", access.GetAllRoles, cobra.NoArgs, none),
		opCmd("bindings", "list every role with its members", access.GetAllRolesWithUsers, cobra.NoArgs, none),
		opCmd("role ROLE", "describe a role and its permissions", access.GetRoleInfo, cobra.ExactArgs(1),
			func(args []string) access.Request { return access.Request{Role: args[0]} }),
		opCmd("grant EMAIL ROLE", "grant a role to a user", access.SetRoleToUser, cobra.ExactArgs(2),
			func(args []string) access.Request { return access.Request{User: args[0], Role: args[1]} }),
		opCmd("revoke EMAIL ROLE", "revoke a role from a user", access.DeleteRoleFromUser, cobra.ExactArgs(2),
			func(args []string) access.Request { return access.Request{User: args[0], Role: args[1]} }),
	)

	rootCmd.AddCommand(accessCmd)
}

// newAccessService authenticates with Google Cloud and returns the service
// for the configured project.
func newAccessService(ctx context.Context, a *app) (*access.Service, error) {
	ac := a.config.Access

	if ac.Project == "" {
		return nil, fmt.Errorf("no project is configured; use --project or set access.project")
	}

	if ac.Format != config.FormatJSON && ac.Format != config.FormatText {
		return nil, fmt.Errorf("unknown output format %q; use %s or %s", ac.Format, config.FormatJSON, config.FormatText)
	}

	if err := os.MkdirAll(ac.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", ac.OutputDir, err)
	}

	if a.Login {
		if err := gcpauth.New().Login(ctx); err != nil {
			return nil, err
		}
	}

	creds, err := gcpauth.Default(ctx)
	if err != nil {
		return nil, err
	}

	policies, roles, err := access.NewGCPClients(ctx, creds, ac.Project)
	if err != nil {
		return nil, err
	}

	return access.NewService(
		policies,
		roles,
		access.NewDumper(ac.OutputDir, ac.Format),
		a.DryRun,
	), nil
}

// runOperation performs a single operation given on the command line.
func runOperation(ctx context.Context, op access.Operation, req access.Request) error {
	svc, err := newAccessService(ctx, appFrom(ctx))
	if err != nil {
		return err
	}

	res := access.NewRunner(svc).Run(ctx, []access.Request{
		{Operation: op.String(), User: req.User, Role: req.Role},
	})
	return res.Errors.ErrorOrNil()
}

// RunOperationsList performs every operation of the --operations-list file.
// Failed operations do not stop the others, but any failure makes the command
// fail.
func RunOperationsList(cmd *cobra.Command, args []string) error {
	if operationsList == "" {
		return cmd.Help()
	}

	ctx := cmd.Context()
	logger := config.LoggerFrom(ctx).Sugar()

	reqs, err := access.LoadRequests(operationsList)
	if err != nil {
		return err
	}

	svc, err := newAccessService(ctx, appFrom(ctx))
	if err != nil {
		return err
	}

	res := access.NewRunner(svc).Run(ctx, reqs)
	logger.Infow(
		"operations finished",
		"operations_list", operationsList,
		"total", res.Total,
		"succeeded", res.Succeeded(),
		"failed", res.Failed,
	)

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d operations failed: %w", res.Failed, res.Total, res.Errors)
	}
	return nil
}
