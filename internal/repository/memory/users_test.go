package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/umd/internal/domain"
)

func ids(users []domain.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestAddUserAssignsMaxPlusOne(t *testing.T) {
	store := NewUserStore(domain.SeedUsers())

	user := store.AddUser("Al", "a@b.com", domain.RoleViewer)
	assert.Equal(t, int64(6), user.ID)
	assert.Equal(t, 6, store.Len())
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, ids(store.List()))
}

func TestAddUserOnEmptyStoreStartsAtOne(t *testing.T) {
	store := NewUserStore(nil)
	assert.Equal(t, int64(1), store.AddUser("Ann", "ann@x.io", domain.RoleAdmin).ID)
	assert.Equal(t, int64(2), store.AddUser("Bob", "bob@x.io", domain.RoleAdmin).ID)
}

func TestAddUserUsesCurrentMaximumNotCount(t *testing.T) {
	store := NewUserStore([]domain.User{
		{ID: 7, Name: "Seven", Email: "s@x.io", Role: domain.RoleEditor},
		{ID: 2, Name: "Two", Email: "t@x.io", Role: domain.RoleEditor},
	})
	assert.Equal(t, int64(8), store.AddUser("Eight", "e@x.io", domain.RoleViewer).ID)
}

func TestDeleteUserIsIdempotent(t *testing.T) {
	store := NewUserStore(domain.SeedUsers())

	removed, ok := store.DeleteUser(3)
	require.True(t, ok)
	assert.Equal(t, "Mike Williams", removed.Name)
	assert.Equal(t, []int64{1, 2, 4, 5}, ids(store.List()))

	_, ok = store.DeleteUser(3)
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 2, 4, 5}, ids(store.List()))

	_, ok = store.DeleteUser(42)
	assert.False(t, ok)
	assert.Equal(t, 4, store.Len())
}

func TestDeleteThenAddDoesNotRenumber(t *testing.T) {
	store := NewUserStore(domain.SeedUsers())
	store.DeleteUser(3)

	user := store.AddUser("New Person", "new@person.io", domain.RoleEditor)
	assert.Equal(t, int64(6), user.ID)
	assert.Equal(t, []int64{1, 2, 4, 5, 6}, ids(store.List()))
}

func TestDeletingMaximumAllowsItsIDAgain(t *testing.T) {
	store := NewUserStore(domain.SeedUsers())
	store.DeleteUser(5)
	assert.Equal(t, int64(5), store.AddUser("Again", "again@x.io", domain.RoleViewer).ID)

	seen := map[int64]bool{}
	for _, u := range store.List() {
		require.False(t, seen[u.ID], "duplicate id %d", u.ID)
		seen[u.ID] = true
	}
}

func TestListReturnsSnapshot(t *testing.T) {
	store := NewUserStore(domain.SeedUsers())
	snapshot := store.List()
	snapshot[0].Name = "mutated"
	store.DeleteUser(1)

	assert.Equal(t, "mutated", snapshot[0].Name)
	first, ok := store.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Sarah Johnson", first.Name)
	_, ok = store.Get(1)
	assert.False(t, ok)
}

func TestConcurrentAddsKeepIDsUnique(t *testing.T) {
	store := NewUserStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.AddUser("Worker", "w@x.io", domain.RoleViewer)
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, u := range store.List() {
		require.False(t, seen[u.ID])
		seen[u.ID] = true
	}
	assert.Len(t, seen, 50)
}
