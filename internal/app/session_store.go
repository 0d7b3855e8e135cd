package app

import (
	"sync"
	"time"
)

// conversationState holds the per-conversation eligibility floor and
// usage counters. The floor is set exactly once, on first contact, and
// never rewound; messages timestamped at or before it are ignored so
// that backlog replay on (re)join is never processed.
type conversationState struct {
	floor     time.Time
	messages  int64
	attempts  int64
	successes int64
	failures  int64
}

// Stats is a read-only snapshot of aggregate session counters
type Stats struct {
	Conversations int   `json:"conversations"`
	Messages      int64 `json:"messages"`
	Attempts      int64 `json:"attempts"`
	Successes     int64 `json:"successes"`
	Failures      int64 `json:"failures"`
}

// SessionStore tracks per-conversation state for the process lifetime.
// Nothing is persisted; a restart starts from a clean slate. All
// read-modify-write operations on a conversation happen under the lock,
// so two near-simultaneous messages can never both observe a stale floor.
type SessionStore struct {
	mu    sync.Mutex
	convs map[int64]*conversationState
	now   func() time.Time
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		convs: make(map[int64]*conversationState),
		now:   time.Now,
	}
}

// Observe records a message sighting and reports whether the message is
// eligible for processing. The first sighting of a conversation records
// the current time as the eligibility floor and is itself ineligible;
// every later message is eligible iff its timestamp is strictly greater
// than the floor.
func (s *SessionStore) Observe(conversationID int64, messageTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[conversationID]
	if !ok {
		s.convs[conversationID] = &conversationState{
			floor:    s.now(),
			messages: 1,
		}
		return false
	}

	st.messages++
	return messageTime.After(st.floor)
}

// RecordAttempt counts a started download attempt
func (s *SessionStore) RecordAttempt(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.convs[conversationID]; ok {
		st.attempts++
	}
}

// RecordOutcome counts a completed download attempt
func (s *SessionStore) RecordOutcome(conversationID int64, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[conversationID]
	if !ok {
		return
	}
	if success {
		st.successes++
	} else {
		st.failures++
	}
}

// Stats returns an aggregate snapshot across all conversations
func (s *SessionStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Conversations: len(s.convs)}
	for _, st := range s.convs {
		stats.Messages += st.messages
		stats.Attempts += st.attempts
		stats.Successes += st.successes
		stats.Failures += st.failures
	}
	return stats
}
