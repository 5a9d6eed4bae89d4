package auth

import "fmt"

type Role string

const (
	RolePerformer   Role = "performer"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// Roles lists every known role, lowest privilege first.
func Roles() []Role {
	return []Role{RolePerformer, RoleCoordinator, RoleAdmin}
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RolePerformer, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
