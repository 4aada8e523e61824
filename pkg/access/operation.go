// Package access manages the IAM role bindings of a Google Cloud project:
// listing users and roles, granting and revoking roles, and running a batch
// of such operations read from a file.
package access

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownOperation is returned for an operation name that is not one of
	// the known operations.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrMissingField is returned when a request lacks a field its operation
	// requires.
	ErrMissingField = errors.New("missing required field")
)

// Operation is one of the operations the access tooling performs.
type Operation int

const (
	OpUnknown Operation = iota
	GetAllUsers
	GetUser
	GetAllRoles
	GetAllRolesWithUsers
	GetRoleInfo
	SetRoleToUser
	DeleteRoleFromUser
)

var operationNames = map[Operation]string{
	GetAllUsers:          "GET_ALL_USERS",
	GetUser:              "GET_USER",
	GetAllRoles:          "GET_ALL_ROLES",
	GetAllRolesWithUsers: "GET_ALL_ROLES_WITH_USERS",
	GetRoleInfo:          "GET_ROLE_INFO",
	SetRoleToUser:        "SET_ROLE_TO_USER",
	DeleteRoleFromUser:   "DELETE_ROLE_FROM_USER",
}

// Operations lists every known operation in a stable order.
var Operations = []Operation{
	GetAllUsers,
	GetUser,
	GetAllRoles,
	GetAllRolesWithUsers,
	GetRoleInfo,
	SetRoleToUser,
	DeleteRoleFromUser,
}

// String returns the name used for the operation in operation files.
func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseOperation returns the operation with the given name. Names are matched
// exactly.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("%w %q", ErrUnknownOperation, name)
}

// needsUser and needsRole tell which request fields an operation reads.
func (o Operation) needsUser() bool {
	return o == GetUser || o == SetRoleToUser || o == DeleteRoleFromUser
}

func (o Operation) needsRole() bool {
	return o == GetRoleInfo || o == SetRoleToUser || o == DeleteRoleFromUser
}

// Mutates reports whether the operation changes the project policy.
func (o Operation) Mutates() bool {
	return o == SetRoleToUser || o == DeleteRoleFromUser
}

// Request is a single entry of an operations file.
type Request struct {
	Operation string `yaml:"operation" json:"operation"`
	User      string `yaml:"user,omitempty" json:"user,omitempty"`
	Role      string `yaml:"role,omitempty" json:"role,omitempty"`
}

// Parse resolves the operation of the request and checks that the fields it
// needs are present.
func (r Request) Parse() (Operation, error) {
	op, err := ParseOperation(r.Operation)
	if err != nil {
		return OpUnknown, err
	}

	if op.needsUser() && r.User == "" {
		return op, fmt.Errorf("%s: %w user", op, ErrMissingField)
	}
	if op.needsRole() && r.Role == "" {
		return op, fmt.Errorf("%s: %w role", op, ErrMissingField)
	}

	return op, nil
}

// LoadRequests reads a list of requests from a JSON or YAML file.
func LoadRequests(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open operations list: %w", err)
	}
	defer f.Close()

	var reqs []Request
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&reqs); err != nil {
		return nil, fmt.Errorf("failed to parse operations list %q: %w", path, err)
	}

	return reqs, nil
}
