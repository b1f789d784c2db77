package settings

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/notify"
	"github.com/splax/umd/internal/repository"
	"github.com/splax/umd/internal/service/users"
	"github.com/splax/umd/pkg/crypto"
)

// MinPasswordLength is the shortest accepted new password.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

var validate = newValidator()

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

// ValidationError reports rejected settings input.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid settings: " + strings.Join(fields, ", ")
}

// ProfileInput is submitted from the profile tab.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"present,mailbox"`
	Phone string `json:"phone" validate:"max=32"`
}

// PasswordInput is submitted from the security tab.
type PasswordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password" validate:"required,min=8"`
	Confirm string `json:"confirm_password" validate:"required,eqfield=New"`
}

// AppearanceInput is submitted from the appearance tab.
type AppearanceInput struct {
	Theme    string `json:"theme" validate:"required,oneof=light dark system"`
	Language string `json:"language" validate:"required,oneof=English Español Français Deutsch"`
}

// Service manages one session's preferences.
type Service struct {
	store    repository.SettingsStore
	notifier notify.Sink
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Service over store.
func New(store repository.SettingsStore, notifier notify.Sink, logger *slog.Logger) Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// Get returns the current settings.
func (s Service) Get(ctx context.Context) domain.Settings {
	return s.store.Get()
}

// UpdateProfile stores the profile tab.
func (s Service) UpdateProfile(ctx context.Context, in ProfileInput) (domain.Settings, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if errs := check(in); len(errs) > 0 {
		return s.store.Get(), &ValidationError{Fields: errs}
	}
	updated, err := s.store.Update(func(st *domain.Settings) error {
		st.Profile = domain.Profile{Name: in.Name, Email: strings.TrimSpace(in.Email), Phone: in.Phone}
		return nil
	})
	if err != nil {
		return updated, err
	}
	s.logger.InfoContext(ctx, "settings updated", "section", "profile")
	s.notifier.Notify(notify.New("Profile updated", "Your profile has been saved successfully.", domain.VariantDefault))
	return updated, nil
}

// UpdateNotifications stores the notification preferences.
func (s Service) UpdateNotifications(ctx context.Context, prefs domain.NotificationPrefs) (domain.Settings, error) {
	updated, err := s.store.Update(func(st *domain.Settings) error {
		st.Notifications = prefs
		return nil
	})
	if err != nil {
		return updated, err
	}
	s.logger.InfoContext(ctx, "settings updated", "section", "notifications")
	s.notifier.Notify(notify.New("Notifications updated", "Your notification preferences have been saved.", domain.VariantDefault))
	return updated, nil
}

// ChangePassword replaces the stored password hash. Once a password is set
// the current one must be supplied.
func (s Service) ChangePassword(ctx context.Context, in PasswordInput) error {
	errs := check(in)
	if _, ok := errs["new_password"]; !ok && len(in.New) > MaxPasswordBytes {
		errs["new_password"] = fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)
	}
	_, err := s.store.Update(func(st *domain.Settings) error {
		if len(st.PasswordHash) > 0 {
			if cmpErr := crypto.ComparePassword(st.PasswordHash, in.Current); cmpErr != nil {
				if !errors.Is(cmpErr, crypto.ErrPasswordMismatch) {
					return fmt.Errorf("compare password: %w", cmpErr)
				}
				errs["current_password"] = "Current password is incorrect"
			}
		}
		if len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
		hash, hashErr := crypto.HashPassword(in.New)
		if hashErr != nil {
			return fmt.Errorf("hash password: %w", hashErr)
		}
		st.PasswordHash = hash
		st.PasswordUpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "settings updated", "section", "security")
	s.notifier.Notify(notify.New("Password updated", "Your password has been changed.", domain.VariantDefault))
	return nil
}

// UpdateAppearance stores theme and language.
func (s Service) UpdateAppearance(ctx context.Context, in AppearanceInput) (domain.Settings, error) {
	if errs := check(in); len(errs) > 0 {
		return s.store.Get(), &ValidationError{Fields: errs}
	}
	updated, err := s.store.Update(func(st *domain.Settings) error {
		st.Appearance = domain.Appearance{Theme: in.Theme, Language: in.Language}
		return nil
	})
	if err != nil {
		return updated, err
	}
	s.logger.InfoContext(ctx, "settings updated", "section", "appearance")
	s.notifier.Notify(notify.New("Appearance updated", "Your display preferences have been saved.", domain.VariantDefault))
	return updated, nil
}

// ToggleSidebar flips the sidebar between open and collapsed.
func (s Service) ToggleSidebar(ctx context.Context) (bool, error) {
	updated, err := s.store.Update(func(st *domain.Settings) error {
		st.SidebarOpen = !st.SidebarOpen
		return nil
	})
	return updated.SidebarOpen, err
}

var messages = map[string]string{
	"required": "This field is required",
	"present":  "This field is required",
	"min":      "Value is too short",
	"max":      "Value is too long",
	"mailbox":  users.MsgEmailInvalid,
	"oneof":    "Please choose one of the listed options",
	"eqfield":  "Passwords do not match",
}

func check(in any) FieldErrors {
	errs := FieldErrors{}
	err := validate.Struct(in)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["form"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		if fe.Tag() == "min" && fe.Field() == "new_password" {
			msg = fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
		}
		errs[fe.Field()] = msg
	}
	return errs
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := users.RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}
