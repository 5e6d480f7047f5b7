// Package pool keeps the IDs of export jobs created during a run so that
// read endpoints can be exercised against real jobs.
package pool

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrEmpty is returned when no live job ID is available
var ErrEmpty = errors.New("job pool is empty")

type entry struct {
	id        string
	expiresAt time.Time
}

// JobPool is a bounded FIFO of job IDs with optional expiry.
//
// Thread Safety: Safe for concurrent use.
type JobPool struct {
	mu      sync.Mutex
	entries []entry
	max     int
	ttl     time.Duration
	now     func() time.Time

	added   int64
	evicted int64
}

// NewJobPool creates a pool holding at most max IDs. A ttl of 0 keeps IDs
// until they are evicted.
func NewJobPool(max int, ttl time.Duration) *JobPool {
	if max <= 0 {
		max = 1000
	}
	return &JobPool{max: max, ttl: ttl, now: time.Now}
}

// Add records a job ID, evicting the oldest one when the pool is full
func (p *JobPool) Add(id string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := entry{id: id}
	if p.ttl > 0 {
		e.expiresAt = p.now().Add(p.ttl)
	}
	if len(p.entries) >= p.max {
		p.entries = p.entries[1:]
		p.evicted++
	}
	p.entries = append(p.entries, e)
	p.added++
}

// Random returns a random live job ID
func (p *JobPool) Random() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropExpired()
	if len(p.entries) == 0 {
		return "", ErrEmpty
	}
	return p.entries[rand.IntN(len(p.entries))].id, nil
}

// Take removes and returns the oldest live job ID
func (p *JobPool) Take() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropExpired()
	if len(p.entries) == 0 {
		return "", ErrEmpty
	}
	id := p.entries[0].id
	p.entries = p.entries[1:]
	return id, nil
}

// Len returns the number of IDs held, expired ones included
func (p *JobPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stats returns how many IDs were added and evicted over the pool's life
func (p *JobPool) Stats() (added, evicted int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.added, p.evicted
}

// dropExpired must be called with the lock held. Entries are appended in
// expiry order, so expired ones form a prefix.
func (p *JobPool) dropExpired() {
	if p.ttl <= 0 {
		return
	}
	now := p.now()
	i := 0
	for i < len(p.entries) && now.After(p.entries[i].expiresAt) {
		i++
	}
	p.entries = p.entries[i:]
}
