package roles

import (
	"errors"
	"fmt"
)

// Role is a member's role inside an organization. The set is closed;
// every write boundary goes through Parse so an unknown role cannot
// reach storage.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleEditor         Role = "editor"
	RoleSeniorReporter Role = "senior_reporter"
	RoleReporter       Role = "reporter"
	RoleContributor    Role = "contributor"
)

// DefaultRole is assigned when an invite does not carry an explicit role.
const DefaultRole = RoleContributor

var ErrUnknownRole = errors.New("unknown organization role")

// levels order roles by privilege. Higher wins.
var levels = map[Role]int{
	RoleAdmin:          5,
	RoleEditor:         4,
	RoleSeniorReporter: 3,
	RoleReporter:       2,
	RoleContributor:    1,
}

func Parse(s string) (Role, error) {
	r := Role(s)
	if _, ok := levels[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

func (r Role) Level() int {
	return levels[r]
}

// Outranks reports whether r is strictly higher-privileged than other.
func (r Role) Outranks(other Role) bool {
	return levels[r] > levels[other]
}

// All returns every role, highest privilege first.
func All() []Role {
	return []Role{RoleAdmin, RoleEditor, RoleSeniorReporter, RoleReporter, RoleContributor}
}
