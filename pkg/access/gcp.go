package access

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
)

// policyVersion is requested so that conditional bindings survive a
// read-modify-write of the policy.
const policyVersion = 3

//go:generate go run go.uber.org/mock/mockgen@v0.2.0 -destination=../mocks/access/mock.go -package=mock_access github.com/zostay/sdv-admin/pkg/access PolicyClient,RoleClient

// PolicyClient reads and replaces the IAM policy of one project.
type PolicyClient interface {
	GetPolicy(ctx context.Context) (*cloudresourcemanager.Policy, error)
	SetPolicy(ctx context.Context, p *cloudresourcemanager.Policy) (*cloudresourcemanager.Policy, error)
}

// RoleClient reads IAM role definitions.
type RoleClient interface {
	ListRoles(ctx context.Context) ([]*iam.Role, error)
	GetRole(ctx context.Context, name string) (*iam.Role, error)
}

// GCPPolicyClient is the PolicyClient of the Cloud Resource Manager API.
type GCPPolicyClient struct {
	svc     *cloudresourcemanager.Service
	project string
}

// GCPRoleClient is the RoleClient of the IAM API.
type GCPRoleClient struct {
	svc *iam.Service
}

// NewGCPClients builds both clients for project with the given credentials.
func NewGCPClients(
	ctx context.Context,
	creds *google.Credentials,
	project string,
) (*GCPPolicyClient, *GCPRoleClient, error) {
	return newGCPClients(ctx, project, option.WithCredentials(creds))
}

func newGCPClients(
	ctx context.Context,
	project string,
	opts ...option.ClientOption,
) (*GCPPolicyClient, *GCPRoleClient, error) {
	if project == "" {
		return nil, nil, fmt.Errorf("a project id is required")
	}

	crm, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build resource manager client: %w", err)
	}

	iamSvc, err := iam.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build IAM client: %w", err)
	}

	return &GCPPolicyClient{svc: crm, project: project}, &GCPRoleClient{svc: iamSvc}, nil
}

// GetPolicy returns the current project policy, including its etag.
func (c *GCPPolicyClient) GetPolicy(ctx context.Context) (*cloudresourcemanager.Policy, error) {
	req := &cloudresourcemanager.GetIamPolicyRequest{
		Options: &cloudresourcemanager.GetPolicyOptions{
			RequestedPolicyVersion: policyVersion,
		},
	}

	p, err := c.svc.Projects.GetIamPolicy(c.project, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get IAM policy of project %q: %w", c.project, err)
	}
	return p, nil
}

// SetPolicy replaces the project policy. The etag read by GetPolicy is sent
// back unchanged so a concurrent change makes the write fail.
func (c *GCPPolicyClient) SetPolicy(
	ctx context.Context,
	p *cloudresourcemanager.Policy,
) (*cloudresourcemanager.Policy, error) {
	if p.Version < policyVersion && lo.SomeBy(p.Bindings, func(b *cloudresourcemanager.Binding) bool {
		return b.Condition != nil
	}) {
		p.Version = policyVersion
	}

	req := &cloudresourcemanager.SetIamPolicyRequest{Policy: p}
	out, err := c.svc.Projects.SetIamPolicy(c.project, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to set IAM policy of project %q: %w", c.project, err)
	}
	return out, nil
}

// ListRoles returns every predefined role, following the result pages.
func (c *GCPRoleClient) ListRoles(ctx context.Context) ([]*iam.Role, error) {
	roles := []*iam.Role{}
	err := c.svc.Roles.List().Context(ctx).Pages(ctx, func(res *iam.ListRolesResponse) error {
		roles = append(roles, res.Roles...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list IAM roles: %w", err)
	}
	return roles, nil
}

// GetRole returns the definition of the named role.
func (c *GCPRoleClient) GetRole(ctx context.Context, name string) (*iam.Role, error) {
	r, err := c.svc.Roles.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get IAM role %q: %w", name, err)
	}
	return r, nil
}
