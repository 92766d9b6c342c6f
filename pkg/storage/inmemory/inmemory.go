package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of sessions
	mu sync.RWMutex

	// sessions is the in memory map of sessions keyed by session id
	sessions map[string]*record

	// seq orders sessions touched within the same clock tick
	seq uint64

	now func() time.Time
}

type record struct {
	summary  storage.SessionSummary
	messages transcript.Transcript
	touched  uint64
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

// CreateSession stores a new, empty session.
func (s *Driver) CreateSession(_ context.Context, agentID string) (*storage.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.seq++
	r := &record{
		summary: storage.SessionSummary{
			ID:             uuid.NewString(),
			VirtualAgentID: agentID,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		touched: s.seq,
	}
	s.sessions[r.summary.ID] = r

	summary := r.summary
	return &summary, nil
}

// GetSession returns the session and a copy of its messages.
func (s *Driver) GetSession(_ context.Context, id string) (*session.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return &session.History{
		ID:             r.summary.ID,
		VirtualAgentID: r.summary.VirtualAgentID,
		Messages:       r.messages.Clone(),
	}, nil
}

// ListSessions returns matching sessions, most recently updated first.
func (s *Driver) ListSessions(_ context.Context, agentID string) ([]storage.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*record, 0, len(s.sessions))
	for _, r := range s.sessions {
		if agentID == "" || r.summary.VirtualAgentID == agentID {
			records = append(records, r)
		}
	}

	slices.SortFunc(records, func(a, b *record) int {
		return cmp.Compare(b.touched, a.touched)
	})

	out := make([]storage.SessionSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.summary)
	}
	return out, nil
}

// AppendMessages appends copies of msgs to the session.
func (s *Driver) AppendMessages(_ context.Context, id string, msgs ...transcript.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sessions[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}

	for _, m := range msgs {
		r.messages = append(r.messages, m.Clone())
	}

	s.seq++
	r.touched = s.seq
	r.summary.MessageCount = len(r.messages)
	r.summary.UpdatedAt = s.now().UTC()
	return nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
