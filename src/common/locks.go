package common

import (
	"context"
	"sync"
	"time"
)

// KeyLocks hands out expiring per-key claims within one process. Deployments
// with more than one replica use the redis locker instead.
type KeyLocks struct {
	mu   sync.Mutex
	held map[string]keyClaim
	seq  uint64
	now  func() time.Time
}

type keyClaim struct {
	token   uint64
	expires time.Time
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{held: map[string]keyClaim{}, now: time.Now}
}

// TryLock claims key for ttl. ok is false while another unexpired claim holds it.
// The returned unlock only releases this claim, never a later one.
func (k *KeyLocks) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if c, ok := k.held[key]; ok && now.Before(c.expires) {
		return nil, false, nil
	}
	k.seq++
	token := k.seq
	k.held[key] = keyClaim{token: token, expires: now.Add(ttl)}

	return func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		if c, ok := k.held[key]; ok && c.token == token {
			delete(k.held, key)
		}
	}, true, nil
}
