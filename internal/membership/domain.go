// internal/membership/domain.go
package membership

import "strings"

// UserID identifies a User. It is drawn from its own sequence, independent of book IDs.
type UserID int64

// Role is the label attached to a user. The recognized set is configured, not fixed.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleLibrarian Role = "LIBRARIAN"
)

// DefaultRoles is the role set used when none is configured.
var DefaultRoles = []Role{RoleMember, RoleLibrarian}

// ParseRole normalizes a role label. It does not check that the role is recognized.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

// User represents a registered library user.
//
// Password is an opaque credential kept exactly as supplied; it is never serialized.
type User struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
}

// UserDraft carries registration input for a user that does not exist yet.
type UserDraft struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserRegisteredEventType names the journal event written when a user registers.
const UserRegisteredEventType = "UserRegistered"

// UserRegisteredEvent is journaled when a new user registers.
type UserRegisteredEvent struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
