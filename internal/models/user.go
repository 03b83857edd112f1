package models

// Role is the access level of a status API account.
type Role string

const (
	// RoleOperator is the single account that may read the fault journal
	// and add viewers.
	RoleOperator Role = "operator"
	// RoleViewer may read status, readings and the event log.
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleViewer
}

// Allows reports whether r grants access to endpoints that require want.
// An operator can do everything a viewer can.
func (r Role) Allows(want Role) bool {
	switch want {
	case RoleViewer:
		return r.Valid()
	case RoleOperator:
		return r == RoleOperator
	}
	return false
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}
