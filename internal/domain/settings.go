package domain

import "time"

// Profile holds the account details edited on the settings page.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// NotificationPrefs toggles the delivery channels a session opted into.
type NotificationPrefs struct {
	Email   bool `json:"email"`
	Push    bool `json:"push"`
	Updates bool `json:"updates"`
}

// Appearance captures display preferences.
type Appearance struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// Settings aggregates per-session preferences.
type Settings struct {
	Profile           Profile           `json:"profile"`
	Notifications     NotificationPrefs `json:"notifications"`
	Appearance        Appearance        `json:"appearance"`
	SidebarOpen       bool              `json:"sidebar_open"`
	PasswordHash      []byte            `json:"-"`
	PasswordUpdatedAt time.Time         `json:"password_updated_at,omitempty"`
}

// Themes and Languages enumerate the accepted appearance values.
var (
	Themes    = []string{"light", "dark", "system"}
	Languages = []string{"English", "Español", "Français", "Deutsch"}
)

// DefaultSettings returns the preferences a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		Profile: Profile{
			Name:  "John Doe",
			Email: "john.doe@email.com",
			Phone: "+1 234 567 8900",
		},
		Notifications: NotificationPrefs{Email: true, Push: false, Updates: true},
		Appearance:    Appearance{Theme: "light", Language: "English"},
		SidebarOpen:   true,
	}
}
