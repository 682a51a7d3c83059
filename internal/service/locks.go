package service

import (
	"sort"
	"sync"
)

// UserLocks hands out one mutex per user id. Operations on the same user
// serialize; different users never contend beyond the map lookup.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUserLocks creates an empty lock table
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *UserLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, exists := l.locks[userID]
	if !exists {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// Lock acquires the locks of all given users in a fixed order and returns
// the function that releases them
func (l *UserLocks) Lock(userIDs ...string) func() {
	ids := append([]string{}, userIDs...)
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for i, id := range ids {
		if id == "" || (i > 0 && ids[i-1] == id) {
			continue
		}
		lock := l.get(id)
		lock.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
