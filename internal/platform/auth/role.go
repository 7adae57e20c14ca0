package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies what a portal user may see and do.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role in menu order.
var Roles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePatient}

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Staff reports whether the role belongs to hospital personnel.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleNurse || r == RoleReceptionist
}

func (r Role) String() string { return string(r) }
