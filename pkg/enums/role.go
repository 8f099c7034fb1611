package enums

import "fmt"

// Role represents a platform-level permissions role carried in access tokens.
type Role string

const (
	RoleEditor      Role = "editor"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

var validRoles = []Role{
	RoleEditor,
	RoleCoordinator,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// CanReviewRequests reports whether the role may decide requests.
func (r Role) CanReviewRequests() bool {
	return r == RoleCoordinator || r == RoleAdmin
}
