package retrieval

import (
	"sync"
	"time"
)

type unlockKey struct {
	sessionID string
	articleID string
}

// Unlocks remembers which sessions entered the correct password for which
// article. An unlock is good for one view and expires after ttl.
type Unlocks struct {
	mu      sync.Mutex
	ttl     time.Duration
	granted map[unlockKey]time.Time
	now     func() time.Time
}

func NewUnlocks(ttl time.Duration) *Unlocks {
	return &Unlocks{
		ttl:     ttl,
		granted: make(map[unlockKey]time.Time),
		now:     time.Now,
	}
}

func (u *Unlocks) Grant(sessionID, articleID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sweepLocked()
	u.granted[unlockKey{sessionID, articleID}] = u.now().Add(u.ttl)
}

// Consume reports whether an unexpired unlock exists and removes it.
func (u *Unlocks) Consume(sessionID, articleID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := unlockKey{sessionID, articleID}
	expires, ok := u.granted[key]
	if !ok {
		return false
	}
	delete(u.granted, key)
	return u.now().Before(expires)
}

func (u *Unlocks) sweepLocked() {
	now := u.now()
	for k, exp := range u.granted {
		if !now.Before(exp) {
			delete(u.granted, k)
		}
	}
}
