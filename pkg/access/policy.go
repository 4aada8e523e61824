package access

import (
	"strings"

	"github.com/samber/lo"
	"google.golang.org/api/cloudresourcemanager/v1"
)

// UserPrefix is the member prefix of user accounts in a policy binding.
const UserPrefix = "user:"

// RoleName returns the full resource name of a role id. Predefined role ids
// such as "storage.objectViewer" get the "roles/" prefix; names already
// carrying a resource prefix are returned as is.
func RoleName(role string) string {
	if strings.HasPrefix(role, "roles/") ||
		strings.HasPrefix(role, "projects/") ||
		strings.HasPrefix(role, "organizations/") {
		return role
	}
	return "roles/" + role
}

// UserMember returns the policy member for a user email. A member that already
// has a type prefix is returned as is.
func UserMember(user string) string {
	if strings.Contains(user, ":") {
		return user
	}
	return UserPrefix + user
}

// UsersByRoles maps each bound role to its members.
func UsersByRoles(p *cloudresourcemanager.Policy) map[string][]string {
	out := make(map[string][]string, len(p.Bindings))
	for _, b := range p.Bindings {
		out[b.Role] = append(out[b.Role], b.Members...)
	}
	return out
}

// RolesByUser maps each user member to the roles bound to it. Members that
// are not users, such as service accounts and groups, are left out.
func RolesByUser(p *cloudresourcemanager.Policy) map[string][]string {
	out := map[string][]string{}
	for _, b := range p.Bindings {
		for _, m := range b.Members {
			if strings.HasPrefix(m, UserPrefix) {
				out[m] = append(out[m], b.Role)
			}
		}
	}
	return out
}

// RolesForUser returns the roles bound to any member containing user.
func RolesForUser(p *cloudresourcemanager.Policy, user string) []string {
	roles := []string{}
	for _, b := range p.Bindings {
		if lo.ContainsBy(b.Members, func(m string) bool { return strings.Contains(m, user) }) {
			roles = append(roles, b.Role)
		}
	}
	return lo.Uniq(roles)
}

// HasMember reports whether member is bound to role.
func HasMember(p *cloudresourcemanager.Policy, role, member string) bool {
	return lo.ContainsBy(p.Bindings, func(b *cloudresourcemanager.Binding) bool {
		return b.Role == role && b.Condition == nil && lo.Contains(b.Members, member)
	})
}

// AddMember binds member to role. It returns false without touching the
// policy when the binding already exists.
func AddMember(p *cloudresourcemanager.Policy, role, member string) bool {
	if HasMember(p, role, member) {
		return false
	}

	for _, b := range p.Bindings {
		if b.Role == role && b.Condition == nil {
			b.Members = append(b.Members, member)
			return true
		}
	}

	p.Bindings = append(p.Bindings, &cloudresourcemanager.Binding{
		Role:    role,
		Members: []string{member},
	})
	return true
}

// RemoveMember unbinds member from role. Unconditional bindings of the role
// left without members are dropped. Conditional bindings are never touched.
// It returns false when the member was not bound.
func RemoveMember(p *cloudresourcemanager.Policy, role, member string) bool {
	changed := false
	kept := p.Bindings[:0]
	for _, b := range p.Bindings {
		if b.Role != role || b.Condition != nil {
			kept = append(kept, b)
			continue
		}
		if lo.Contains(b.Members, member) {
			b.Members = lo.Without(b.Members, member)
			changed = true
		}
		if len(b.Members) == 0 {
			continue
		}
		kept = append(kept, b)
	}
	p.Bindings = kept
	return changed
}
