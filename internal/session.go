package internal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamSession binds an opaque session id to one protocol endpoint.
// A session serves at most one query at a time; concurrent requests
// bearing the same id are rejected while a query is in flight.
type StreamSession struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
	busy         bool
	cancel       context.CancelFunc
}

// LastAccessed returns the time of the session's most recent request
func (s *StreamSession) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// Acquire marks the session busy for one query. The cancel function is
// invoked if the session is terminated or swept while the query runs.
// Returns a SessionError when a query is already in flight.
func (s *StreamSession) Acquire(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return &SessionError{SessionID: s.ID, Op: "acquire", Reason: "session busy"}
	}
	s.busy = true
	s.cancel = cancel
	return nil
}

// Release marks the session idle again after a query finishes
func (s *StreamSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.cancel = nil
}

// abort cancels the in-flight query, if any
func (s *StreamSession) abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *StreamSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccessed = now
	s.mu.Unlock()
}

// Registry owns all live sessions and expires idle ones. The clock is
// injectable so TTL expiry is testable without wall-clock delay.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*StreamSession
	ttl      time.Duration
	clock    func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates a Registry with the given idle TTL. A nil clock
// defaults to time.Now.
func NewRegistry(ttl time.Duration, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		sessions: make(map[string]*StreamSession),
		ttl:      ttl,
		clock:    clock,
		stop:     make(chan struct{}),
	}
}

// Resolve returns the session for the given id, creating one when the
// id is empty or unknown. The second return value reports whether a
// new session was created. Resolving refreshes lastAccessed.
func (r *Registry) Resolve(id string) (*StreamSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if id != "" {
		if sess, ok := r.sessions[id]; ok {
			sess.touch(now)
			return sess, false
		}
	}

	if id == "" {
		id = uuid.New().String()
	}
	sess := &StreamSession{
		ID:           id,
		CreatedAt:    now,
		lastAccessed: now,
	}
	r.sessions[id] = sess
	LogDebug("session %s created", id)
	return sess, true
}

// Terminate removes a session by id unconditionally and cancels its
// in-flight query. Returns whether the session existed.
func (r *Registry) Terminate(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		sess.abort()
		LogDebug("session %s terminated", id)
	}
	return ok
}

// Sweep removes every session idle longer than the TTL and returns the
// number removed
func (r *Registry) Sweep() int {
	now := r.clock()

	r.mu.Lock()
	var expired []*StreamSession
	for id, sess := range r.sessions {
		if now.Sub(sess.LastAccessed()) > r.ttl {
			delete(r.sessions, id)
			expired = append(expired, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.abort()
	}
	if len(expired) > 0 {
		LogInfo("swept %d expired session(s)", len(expired))
	}
	return len(expired)
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper starts the background idle sweep on a fixed interval
func (r *Registry) StartSweeper(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Close stops the sweeper and terminates every session
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()

	r.mu.Lock()
	sessions := make([]*StreamSession, 0, len(r.sessions))
	for id, sess := range r.sessions {
		sessions = append(sessions, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.abort()
	}
}
