package account

import "errors"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var ErrInvalidRole = errors.New("invalid role")

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// Toggle flips admin <-> member. Unknown roles are returned unchanged together with ErrInvalidRole.
func (r Role) Toggle() (Role, error) {
	switch r {
	case RoleAdmin:
		return RoleMember, nil
	case RoleMember:
		return RoleAdmin, nil
	default:
		return r, ErrInvalidRole
	}
}

type Account struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"isVerified"`
	Password   string `json:"password,omitempty"`
}

// Sanitized returns a copy without the secret, the only form ever held in a session.
func (a Account) Sanitized() Account {
	a.Password = ""
	return a
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
