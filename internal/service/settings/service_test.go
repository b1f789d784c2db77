package settings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/notify"
	"github.com/splax/umd/internal/repository/memory"
	"github.com/splax/umd/pkg/logger"
)

func newService(t *testing.T) (Service, *notify.Outbox) {
	t.Helper()
	box := notify.NewOutbox(10)
	svc := New(memory.NewSettingsStore(domain.DefaultSettings()), box, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, box
}

func TestDefaults(t *testing.T) {
	svc, _ := newService(t)
	st := svc.Get(context.Background())
	assert.Equal(t, "John Doe", st.Profile.Name)
	assert.Equal(t, "+1 234 567 8900", st.Profile.Phone)
	assert.True(t, st.Notifications.Email)
	assert.False(t, st.Notifications.Push)
	assert.True(t, st.SidebarOpen)
}

func TestUpdateProfile(t *testing.T) {
	svc, box := newService(t)
	ctx := context.Background()

	st, err := svc.UpdateProfile(ctx, ProfileInput{Name: " Jane Roe ", Email: "jane@roe.io", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", st.Profile.Name)
	toasts := box.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Profile updated", toasts[0].Title)

	_, err = svc.UpdateProfile(ctx, ProfileInput{Name: "", Email: "nope"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
	assert.Equal(t, "Jane Roe", svc.Get(ctx).Profile.Name)
	assert.Zero(t, box.Len())
}

func TestUpdateNotifications(t *testing.T) {
	svc, box := newService(t)
	st, err := svc.UpdateNotifications(context.Background(), domain.NotificationPrefs{Push: true})
	require.NoError(t, err)
	assert.True(t, st.Notifications.Push)
	assert.False(t, st.Notifications.Email)
	assert.Equal(t, "Notifications updated", box.Drain()[0].Title)
}

func TestChangePassword(t *testing.T) {
	svc, box := newService(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, PasswordInput{New: "short", Confirm: "other"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Password must be at least 8 characters", verr.Fields["new_password"])
	assert.Equal(t, "Passwords do not match", verr.Fields["confirm_password"])

	require.NoError(t, svc.ChangePassword(ctx, PasswordInput{New: "correct horse", Confirm: "correct horse"}))
	st := svc.Get(ctx)
	assert.NotEmpty(t, st.PasswordHash)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), st.PasswordUpdatedAt)
	assert.Equal(t, "Password updated", box.Drain()[0].Title)

	err = svc.ChangePassword(ctx, PasswordInput{Current: "wrong", New: "battery staple", Confirm: "battery staple"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "current_password")

	require.NoError(t, svc.ChangePassword(ctx, PasswordInput{Current: "correct horse", New: "battery staple", Confirm: "battery staple"}))
}

func TestChangePasswordRejectsOverlongPassword(t *testing.T) {
	svc, box := newService(t)
	ctx := context.Background()

	long := strings.Repeat("é", 40)
	err := svc.ChangePassword(ctx, PasswordInput{New: long, Confirm: long})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Password must be at most 72 bytes", verr.Fields["new_password"])
	assert.Empty(t, svc.Get(ctx).PasswordHash)
	assert.Empty(t, box.Drain())

	exact := strings.Repeat("x", MaxPasswordBytes)
	require.NoError(t, svc.ChangePassword(ctx, PasswordInput{New: exact, Confirm: exact}))
	assert.NotEmpty(t, svc.Get(ctx).PasswordHash)
}

func TestUpdateAppearanceAndSidebar(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	st, err := svc.UpdateAppearance(ctx, AppearanceInput{Theme: "dark", Language: "Deutsch"})
	require.NoError(t, err)
	assert.Equal(t, "dark", st.Appearance.Theme)

	_, err = svc.UpdateAppearance(ctx, AppearanceInput{Theme: "neon", Language: "Klingon"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)

	open, err := svc.ToggleSidebar(ctx)
	require.NoError(t, err)
	assert.False(t, open)
	open, err = svc.ToggleSidebar(ctx)
	require.NoError(t, err)
	assert.True(t, open)
}
