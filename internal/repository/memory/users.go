package memory

import (
	"sync"

	"github.com/splax/umd/internal/domain"
)

// UserStore is an ordered, mutex guarded collection of users.
type UserStore struct {
	mu    sync.RWMutex
	users []domain.User
}

// NewUserStore copies seed into a new store. Seed ids are kept as given.
func NewUserStore(seed []domain.User) *UserStore {
	return &UserStore{users: append([]domain.User(nil), seed...)}
}

// List returns a snapshot in insertion order.
func (s *UserStore) List() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.User(nil), s.users...)
}

// Len reports the number of stored records.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Get looks up a record by id.
func (s *UserStore) Get(id int64) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

// AddUser appends a record whose id is one past the current maximum, or 1
// when the store is empty. Inputs are expected to be validated already.
func (s *UserStore) AddUser(name, email string, role domain.Role) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := domain.User{ID: s.nextIDLocked(), Name: name, Email: email, Role: role}
	s.users = append(s.users, user)
	return user
}

// DeleteUser removes the record with id. A missing id leaves the store as is.
func (s *UserStore) DeleteUser(id int64) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID != id {
			continue
		}
		// fresh slice so earlier snapshots never alias the backing array
		next := make([]domain.User, 0, len(s.users)-1)
		next = append(next, s.users[:i]...)
		next = append(next, s.users[i+1:]...)
		s.users = next
		return u, true
	}
	return domain.User{}, false
}

func (s *UserStore) nextIDLocked() int64 {
	var highest int64
	for _, u := range s.users {
		if u.ID > highest {
			highest = u.ID
		}
	}
	return highest + 1
}
