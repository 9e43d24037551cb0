// Package session holds the process-wide per-session state consumed by the
// interception pipeline: cached model info, subagent classification, and the
// tool-call correlation table for Gemini identifier recovery. State lives
// for the lifetime of the process; there is no explicit teardown.
package session

import (
	"sync"
	"time"

	"github.com/router-for-me/toolgate/internal/correlate"
	log "github.com/sirupsen/logrus"
)

// Classifier decides whether a session is a subagent session, i.e. one
// spawned as a child of another session. Subagent sessions are excluded from
// request debug logging. The verdict is cached per session on first use.
type Classifier func(sessionID string) bool

// state is the per-session record. Model and subagent classification are
// cached indefinitely once set; the correlation table is replaced on every
// rebuild and cleared on session change.
type state struct {
	model       string
	modelKnown  bool
	subagent    bool
	subagentSet bool
	table       *correlate.Table
	firstSeen   time.Time
	lastSeen    time.Time
	requests    int64
}

// Info is a read-only snapshot of one session's state, used by the debug API.
type Info struct {
	ID              string    `json:"id"`
	Model           string    `json:"model,omitempty"`
	Subagent        bool      `json:"subagent"`
	CorrelatedCalls int       `json:"correlatedCalls"`
	FirstSeen       time.Time `json:"firstSeen"`
	LastSeen        time.Time `json:"lastSeen"`
	Requests        int64     `json:"requests"`
}

// Store is the process-wide session state store. It is safe for concurrent
// use across sessions; within one session, correlation-table rebuild and
// lookup are intentionally not mutually isolated (accepted race, see the
// package docs of correlate).
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*state
	lastSeenID string
	classifier Classifier
}

// NewStore returns an empty store. classifier may be nil, in which case no
// session is ever treated as a subagent.
func NewStore(classifier Classifier) *Store {
	return &Store{
		sessions:   make(map[string]*state),
		classifier: classifier,
	}
}

// Observe records a request for sessionID, creating the session lazily.
// When the most-recently-seen session changes, every correlation table in
// the store is dropped, not just the previous session's. The correlator
// assumes a single active session at a time; see DESIGN.md before
// changing this.
func (s *Store) Observe(sessionID string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSeenID != "" && s.lastSeenID != sessionID {
		for id, st := range s.sessions {
			if st.table != nil {
				log.WithFields(log.Fields{
					"session": id,
					"calls":   st.table.Len(),
				}).Debug("session changed, dropping correlation table")
			}
			st.table = nil
		}
	}
	s.lastSeenID = sessionID

	st := s.sessions[sessionID]
	if st == nil {
		st = &state{firstSeen: time.Now()}
		s.sessions[sessionID] = st
	}
	st.lastSeen = time.Now()
	st.requests++
}

// SetModel caches the model observed for a session.
func (s *Store) SetModel(sessionID, model string) {
	if sessionID == "" || model == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.ensureLocked(sessionID); !st.modelKnown {
		st.model = model
		st.modelKnown = true
	}
}

// Model returns the cached model for a session, if any.
func (s *Store) Model(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok || !st.modelKnown {
		return "", false
	}
	return st.model, true
}

// Subagent reports whether sessionID is a subagent session, consulting the
// classifier once and caching the verdict.
func (s *Store) Subagent(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(sessionID)
	if !st.subagentSet {
		if s.classifier != nil {
			st.subagent = s.classifier(sessionID)
		}
		st.subagentSet = true
	}
	return st.subagent
}

// SetTable stores a freshly built correlation table for a session,
// replacing any prior table.
func (s *Store) SetTable(sessionID string, table *correlate.Table) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(sessionID).table = table
}

// Table returns the session's current correlation table, or nil when none
// has been built since the last invalidation.
func (s *Store) Table(sessionID string) *correlate.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return st.table
}

// LastSeen returns the identifier of the most recently observed session.
func (s *Store) LastSeen() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeenID
}

// Snapshot returns a copy of every session's state for inspection.
func (s *Store) Snapshot() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]Info, 0, len(s.sessions))
	for id, st := range s.sessions {
		infos = append(infos, Info{
			ID:              id,
			Model:           st.model,
			Subagent:        st.subagent,
			CorrelatedCalls: st.table.Len(),
			FirstSeen:       st.firstSeen,
			LastSeen:        st.lastSeen,
			Requests:        st.requests,
		})
	}
	return infos
}

func (s *Store) ensureLocked(sessionID string) *state {
	st := s.sessions[sessionID]
	if st == nil {
		st = &state{firstSeen: time.Now(), lastSeen: time.Now()}
		s.sessions[sessionID] = st
	}
	return st
}
