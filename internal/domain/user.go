package domain

// Role is the closed set of permission levels a managed user can hold.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// ParseRole reports whether value names a known role.
func ParseRole(value string) (Role, bool) {
	for _, role := range Roles {
		if string(role) == value {
			return role, true
		}
	}
	return "", false
}

// User represents one managed account shown in the dashboard.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// SeedUsers returns the sample records every fresh session starts with.
func SeedUsers() []User {
	return []User{
		{ID: 1, Name: "John Smith", Email: "john.smith@email.com", Role: RoleAdmin},
		{ID: 2, Name: "Sarah Johnson", Email: "sarah.j@email.com", Role: RoleEditor},
		{ID: 3, Name: "Mike Williams", Email: "mike.w@email.com", Role: RoleViewer},
		{ID: 4, Name: "Emily Davis", Email: "emily.d@email.com", Role: RoleEditor},
		{ID: 5, Name: "Chris Brown", Email: "chris.b@email.com", Role: RoleViewer},
	}
}
