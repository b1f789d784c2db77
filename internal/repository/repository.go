package repository

import "github.com/splax/umd/internal/domain"

// UserStore holds the ordered user records of one session. Implementations
// assign identifiers and must keep them unique.
type UserStore interface {
	List() []domain.User
	Get(id int64) (domain.User, bool)
	AddUser(name, email string, role domain.Role) domain.User
	DeleteUser(id int64) (domain.User, bool)
}

// SettingsStore holds the preferences of one session.
type SettingsStore interface {
	Get() domain.Settings
	Update(fn func(*domain.Settings) error) (domain.Settings, error)
}
