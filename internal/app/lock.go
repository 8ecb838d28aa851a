package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type accountSlot struct {
	sem  *semaphore.Weighted
	refs int
}

// accountLocks serializes runs per account within the process. An account's
// slot lives only while a run holds or waits on it.
type accountLocks struct {
	mu    sync.Mutex
	slots map[string]*accountSlot
}

func newAccountLocks() *accountLocks {
	return &accountLocks{slots: make(map[string]*accountSlot)}
}

// acquire blocks until the account's slot is free or ctx is done.
func (l *accountLocks) acquire(ctx context.Context, accountID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[accountID]
	if !ok {
		slot = &accountSlot{sem: semaphore.NewWeighted(1)}
		l.slots[accountID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.drop(accountID, slot)
		return nil, err
	}
	return func() {
		slot.sem.Release(1)
		l.drop(accountID, slot)
	}, nil
}

func (l *accountLocks) drop(accountID string, slot *accountSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, accountID)
	}
}
