package users

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/notify"
	"github.com/splax/umd/internal/repository"
)

// Service handles the add/delete workflows of one session's user list.
type Service struct {
	store    repository.UserStore
	notifier notify.Sink
	logger   *slog.Logger
}

// New constructs a Service over store. A nil notifier discards notifications.
func New(store repository.UserStore, notifier notify.Sink, logger *slog.Logger) Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return Service{store: store, notifier: notifier, logger: logger}
}

// List returns the users in display order.
func (s Service) List(ctx context.Context) []domain.User {
	return s.store.List()
}

// Stats tallies the current users for roles.
func (s Service) Stats(ctx context.Context, roles []domain.Role) Stats {
	return ComputeStats(s.store.List(), roles)
}

// Add validates in and appends a new user. A rejected input returns a
// *ValidationError and leaves the store untouched.
func (s Service) Add(ctx context.Context, in Input) (domain.User, error) {
	if errs := Validate(in); len(errs) > 0 {
		s.logger.DebugContext(ctx, "user rejected", "fields", errs.Fields())
		return domain.User{}, &ValidationError{Fields: errs}
	}
	role, _ := domain.ParseRole(in.Role)
	user := s.store.AddUser(strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), role)
	s.logger.InfoContext(ctx, "user added", "user_id", user.ID, "role", user.Role)
	s.notifier.Notify(notify.New(
		"User added successfully",
		fmt.Sprintf("%s has been added to the system.", user.Name),
		domain.VariantDefault,
	))
	return user, nil
}

// Delete removes the user with id. A missing id returns repository.ErrNotFound
// and emits no notification.
func (s Service) Delete(ctx context.Context, id int64) (domain.User, error) {
	user, ok := s.store.DeleteUser(id)
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", user.ID)
	s.notifier.Notify(notify.New(
		"User deleted",
		fmt.Sprintf("%s has been removed from the system.", user.Name),
		domain.VariantDestructive,
	))
	return user, nil
}
