// Package cache provides decision cache implementations for Bastion.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/clock"
)

// Compile-time interface check.
var _ bastion.Cache = (*Memory)(nil)

// Memory is an in-memory TTL cache. Invalidation is generation based: every
// entry records the global and per-user generation it was computed under,
// and entries from older generations are never served.
//
// Per-user generations are drawn from seq, which only grows. Users without a
// tracked generation read floor, and floor is moved to a fresh seq value
// whenever tracked users are pruned, so a pruned user never reads a
// generation that an in-flight Set could have observed.
type Memory struct {
	mu      sync.Mutex
	entries map[bastion.CacheKey]*entry
	global  uint64
	users   map[string]uint64
	seq     uint64
	floor   uint64
	maxSize int
	clock   clock.Clock
}

type entry struct {
	decision  *bastion.Decision
	gen       bastion.Generation
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[bastion.CacheKey]*entry),
		users:   make(map[string]uint64),
		maxSize: 10000,
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the cached decision for key. On a miss it returns
// the current generation for the key's user.
func (m *Memory) Get(_ context.Context, key bastion.CacheKey) (*bastion.Decision, bastion.Generation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.generation(key.UserID)
	e, ok := m.entries[key]
	if !ok {
		return nil, gen, false
	}
	if e.gen != gen || !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, gen, false
	}
	return e.decision.Clone(), gen, true
}

// Set stores d unless an invalidation happened since gen was observed.
func (m *Memory) Set(_ context.Context, key bastion.CacheKey, gen bastion.Generation, d *bastion.Decision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation(key.UserID) {
		return
	}
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}
	m.entries[key] = &entry{
		decision:  d.Clone(),
		gen:       gen,
		expiresAt: m.clock.Now().Add(ttl),
	}
}

// InvalidateUser advances the user's generation and drops their entries.
func (m *Memory) InvalidateUser(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.users[userID] = m.seq
	for k := range m.entries {
		if k.UserID == userID {
			delete(m.entries, k)
		}
	}
	if len(m.users) > m.maxSize {
		m.evictExpired()
	}
}

// InvalidateAll advances the global generation and drops every entry.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global++
	clear(m.entries)
	// Every observed generation now carries an older Global.
	clear(m.users)
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// TrackedUsers returns how many per-user generations are held.
func (m *Memory) TrackedUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// generation returns the current generation for userID. Must hold lock.
func (m *Memory) generation(userID string) bastion.Generation {
	user, ok := m.users[userID]
	if !ok {
		user = m.floor
	}
	return bastion.Generation{Global: m.global, User: user}
}

// evictExpired removes all expired entries, then prunes the generations of
// users left without entries. Must hold lock.
func (m *Memory) evictExpired() {
	now := m.clock.Now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.pruneUsers()
}

// pruneUsers forgets the generations of users without live entries. Must
// hold lock.
func (m *Memory) pruneUsers() {
	live := make(map[string]struct{}, len(m.entries))
	for k := range m.entries {
		live[k.UserID] = struct{}{}
	}
	if len(m.users) <= len(live) {
		return
	}
	// Users with entries but no tracked generation keep the current floor.
	for u := range live {
		if _, ok := m.users[u]; !ok {
			m.users[u] = m.floor
		}
	}
	for u := range m.users {
		if _, ok := live[u]; !ok {
			delete(m.users, u)
		}
	}
	m.seq++
	m.floor = m.seq
}

// evictOne removes one arbitrary entry. Must hold lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
