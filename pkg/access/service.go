package access

import (
	"context"
	"fmt"

	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/iam/v1"

	"github.com/zostay/sdv-admin/pkg/config"
)

// Service performs the access operations against one project.
type Service struct {
	policies PolicyClient
	roles    RoleClient
	dumper   *Dumper
	dryRun   bool
}

// NewService returns a Service using the given clients. Read operations write
// their results through dumper. With dryRun set, grant and revoke report what
// they would change without writing the policy.
func NewService(policies PolicyClient, roles RoleClient, dumper *Dumper, dryRun bool) *Service {
	return &Service{
		policies: policies,
		roles:    roles,
		dumper:   dumper,
		dryRun:   dryRun,
	}
}

// UsersWithRoles returns the roles of every user account in the project.
func (s *Service) UsersWithRoles(ctx context.Context) (map[string][]string, error) {
	p, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return RolesByUser(p), nil
}

// UserRoles returns the roles bound to members matching user.
func (s *Service) UserRoles(ctx context.Context, user string) ([]string, error) {
	p, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return RolesForUser(p, user), nil
}

// Roles returns every predefined role.
func (s *Service) Roles(ctx context.Context) ([]*iam.Role, error) {
	return s.roles.ListRoles(ctx)
}

// RolesWithUsers returns the members of every role bound in the project.
func (s *Service) RolesWithUsers(ctx context.Context) (map[string][]string, error) {
	p, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return UsersByRoles(p), nil
}

// RoleInfo returns the definition of a role.
func (s *Service) RoleInfo(ctx context.Context, role string) (*iam.Role, error) {
	return s.roles.GetRole(ctx, RoleName(role))
}

// modify reads the policy, applies change, and writes the policy back only
// when change reports that it modified it.
func (s *Service) modify(
	ctx context.Context,
	change func(p *cloudresourcemanager.Policy) bool,
) (bool, error) {
	p, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return false, err
	}

	if !change(p) {
		return false, nil
	}

	if s.dryRun {
		return true, nil
	}

	if _, err := s.policies.SetPolicy(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// Grant binds role to user. Granting a role the user already has is a
// successful no-op that returns false.
func (s *Service) Grant(ctx context.Context, user, role string) (bool, error) {
	logger := config.LoggerFrom(ctx).Sugar()
	roleName, member := RoleName(role), UserMember(user)

	changed, err := s.modify(ctx, func(p *cloudresourcemanager.Policy) bool {
		return AddMember(p, roleName, member)
	})
	if err != nil {
		return false, fmt.Errorf("failed to grant %q to %q: %w", roleName, user, err)
	}

	switch {
	case !changed:
		logger.Infow("user already has the role", "user", user, "role", roleName)
	case s.dryRun:
		logger.Infow("dry run: here's where the role would get granted", "user", user, "role", roleName)
	default:
		logger.Infow("granted role to user", "user", user, "role", roleName)
	}
	return changed, nil
}

// Revoke unbinds role from user. Revoking a role the user does not have is a
// successful no-op that returns false.
func (s *Service) Revoke(ctx context.Context, user, role string) (bool, error) {
	logger := config.LoggerFrom(ctx).Sugar()
	roleName, member := RoleName(role), UserMember(user)

	changed, err := s.modify(ctx, func(p *cloudresourcemanager.Policy) bool {
		return RemoveMember(p, roleName, member)
	})
	if err != nil {
		return false, fmt.Errorf("failed to revoke %q from %q: %w", roleName, user, err)
	}

	switch {
	case !changed:
		logger.Infow("user does not have the role", "user", user, "role", roleName)
	case s.dryRun:
		logger.Infow("dry run: here's where the role would get revoked", "user", user, "role", roleName)
	default:
		logger.Infow("revoked role from user", "user", user, "role", roleName)
	}
	return changed, nil
}

// Do performs one operation. Read operations dump their result into the file
// belonging to the operation.
func (s *Service) Do(ctx context.Context, op Operation, r Request) error {
	var (
		file string
		data any
		err  error
	)

	switch op {
	case GetAllUsers:
		file = UsersWithRolesFile
		data, err = s.UsersWithRoles(ctx)
	case GetUser:
		file = UserInfoFile
		data, err = s.UserRoles(ctx, r.User)
	case GetAllRoles:
		file = RolesFile
		data, err = s.Roles(ctx)
	case GetAllRolesWithUsers:
		file = UsersByRolesFile
		data, err = s.RolesWithUsers(ctx)
	case GetRoleInfo:
		file = RoleInfoFile
		data, err = s.RoleInfo(ctx, r.Role)
	case SetRoleToUser:
		_, err = s.Grant(ctx, r.User, r.Role)
		return err
	case DeleteRoleFromUser:
		_, err = s.Revoke(ctx, r.User, r.Role)
		return err
	default:
		return fmt.Errorf("%w %q", ErrUnknownOperation, op)
	}

	if err != nil {
		return err
	}

	path, err := s.dumper.Dump(file, data)
	if err != nil {
		return err
	}

	config.LoggerFrom(ctx).Sugar().Infow(
		"data is saved",
		"operation", op,
		"file", path,
	)
	return nil
}
