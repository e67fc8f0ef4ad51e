package coordinate

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrLeaseHeld is returned when another owner holds a live lease on the key.
var ErrLeaseHeld = errors.New("lease already held")

// ErrLeaseExpired is returned when renewing or releasing a lease whose ttl
// elapsed. The key may already belong to someone else.
var ErrLeaseExpired = errors.New("lease expired")

// Lease is a short-lived exclusive claim on one entity key. On ttl expiry
// the key is reclaimable by any caller: a crashed holder must not block an
// entity forever.
type Lease struct {
	Key       string
	Owner     uuid.UUID
	ExpiresAt time.Time
}

// LeaseTable coordinates per-key writer exclusivity in process. Expiry is
// driven by the clock so tests can reclaim leases deterministically.
type LeaseTable struct {
	clock clockwork.Clock

	mu     sync.Mutex
	leases map[string]Lease
}

func NewLeaseTable(clock clockwork.Clock) *LeaseTable {
	return &LeaseTable{
		clock:  clock,
		leases: make(map[string]Lease),
	}
}

// Acquire claims the key for ttl. An expired lease is reclaimed in place.
func (t *LeaseTable) Acquire(key string, ttl time.Duration) (Lease, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if held, ok := t.leases[key]; ok && held.ExpiresAt.After(now) {
		return Lease{}, ErrLeaseHeld
	}

	lease := Lease{
		Key:       key,
		Owner:     uuid.New(),
		ExpiresAt: now.Add(ttl),
	}
	t.leases[key] = lease
	return lease, nil
}

// Renew extends a held lease. Fails once the ttl elapsed, even if nobody
// reclaimed the key yet.
func (t *LeaseTable) Renew(lease Lease, ttl time.Duration) (Lease, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	held, ok := t.leases[lease.Key]
	if !ok || held.Owner != lease.Owner {
		return Lease{}, ErrLeaseHeld
	}
	if !held.ExpiresAt.After(t.clock.Now()) {
		return Lease{}, ErrLeaseExpired
	}

	held.ExpiresAt = t.clock.Now().Add(ttl)
	t.leases[lease.Key] = held
	return held, nil
}

// Release frees the key if the caller still owns it. Releasing an expired
// or reclaimed lease is a no-op.
func (t *LeaseTable) Release(lease Lease) {
	t.mu.Lock()
	defer t.mu.Unlock()

	held, ok := t.leases[lease.Key]
	if ok && held.Owner == lease.Owner {
		delete(t.leases, lease.Key)
	}
}
