package entry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salusa-dev/backend-klinik/internal/ledger"
	"github.com/salusa-dev/backend-klinik/internal/obs"
)

// Flow identifies which order-entry surface owns a session.
type Flow string

const (
	// FlowService is the test/service order-entry flow.
	FlowService Flow = "service"
	// FlowPurchase is the purchase order-entry flow.
	FlowPurchase Flow = "purchase"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("entry session not found")

// Session binds one in-progress ledger to an expiring ID. A session is owned
// by a single operator screen; all access goes through Store.With so the
// ledger itself stays free of locking.
type Session struct {
	ID        string
	Flow      Flow
	Ledger    *ledger.Ledger
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store keeps entry sessions in memory with sliding TTL expiry. Expired
// sessions are evicted lazily on access and by Sweep.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewStore constructs a Store with the given session TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session with an empty ledger and returns its metadata.
func (s *Store) Create(flow Flow) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Flow:      flow,
		Ledger:    ledger.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.ID] = sess
	if obs.EntrySessionsActive != nil {
		obs.EntrySessionsActive.Inc()
	}
	return *sess
}

// With runs fn against the session under the store lock and extends the
// session's expiry. It returns ErrNotFound when the session is absent or
// already expired.
func (s *Store) With(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	if now.After(sess.ExpiresAt) {
		s.evictLocked(id)
		return ErrNotFound
	}
	sess.ExpiresAt = now.Add(s.ttl)
	return fn(sess)
}

// Delete removes the session. Absent sessions are a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		s.evictLocked(id)
	}
}

// Sweep evicts every expired session and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			s.evictLocked(id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) evictLocked(id string) {
	delete(s.sessions, id)
	if obs.EntrySessionsActive != nil {
		obs.EntrySessionsActive.Dec()
	}
}
