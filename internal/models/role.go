package models

import "github.com/gridvolt/auth-service/internal/utils"

// Role is the closed set of login surfaces. Login is always performed as one
// specific role the account must already hold; a single account may hold
// several.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleInstaller     Role = "installer"
	RoleUser          Role = "user"
)

// ParseRole validates a role string coming from a token claim or a request
// payload. An unrecognized value is a malformed-token condition, never a
// fallback role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdministrator, RoleInstaller, RoleUser:
		return Role(s), nil
	}
	return "", utils.ErrMalformedToken
}

func (r Role) String() string {
	return string(r)
}
