package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Attachment is a staged file reference. Uploading is handled elsewhere.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Snapshot is a consistent copy of the store state handed to the display layer.
type Snapshot struct {
	Messages  Transcript
	SessionID string
	Loading   bool
	Draft     string
	Files     []Attachment
	Epoch     uint64

	// Version increases with every commit. Subscribers may be called
	// concurrently from different committers and can use it to drop a
	// snapshot older than one they already hold.
	Version uint64
}

// StoreOption configures a Store created with NewStore.
type StoreOption func(*Store)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides the message id generator (uuid v4 by default).
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		s.newID = newID
	}
}

// Store holds the transcript and the derived UI flags for one chat.
//
// Subscribers are notified synchronously after every commit, outside the
// store lock. A subscriber must not block and must not re-enter the
// scheduler that is committing.
type Store struct {
	mu        sync.RWMutex
	messages  Transcript
	sessionID string
	loading   bool
	draft     string
	files     []Attachment

	// epoch is bumped by Reset so that writes scoped to an older
	// conversation can be recognised and refused.
	epoch uint64

	version uint64

	subs    map[int]func(Snapshot)
	nextSub int

	now   func() time.Time
	newID func() string
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		subs:  make(map[int]func(Snapshot)),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every commit.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the current transcript.
func (s *Store) Messages() Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.Clone()
}

// Epoch returns the current conversation epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// AppendUser appends a user message carrying text and returns it.
func (s *Store) AppendUser(text string) Message {
	var msg Message
	s.commit(func() bool {
		msg = NewTextMessage(s.newID(), RoleUser, text, s.now())
		s.messages = append(s.messages, msg)
		return true
	})
	return msg.Clone()
}

// AppendPlaceholder appends an empty assistant message and returns the
// handle reducers use to address it.
func (s *Store) AppendPlaceholder() Handle {
	var h Handle
	s.commit(func() bool {
		msg := Message{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   []ContentItem{},
			Timestamp: s.now(),
		}
		s.messages = append(s.messages, msg)
		h = Handle(msg.ID)
		return true
	})
	return h
}

// Turn is the pair of messages opened by BeginTurn.
type Turn struct {
	// Epoch is the conversation epoch the turn belongs to.
	Epoch uint64

	User   Message
	Handle Handle
}

// BeginTurn appends a user message carrying text and an empty assistant
// placeholder, and raises the loading flag, as one commit.
func (s *Store) BeginTurn(text string) Turn {
	var turn Turn
	s.commit(func() bool {
		at := s.now()
		user := NewTextMessage(s.newID(), RoleUser, text, at)
		placeholder := Message{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   []ContentItem{},
			Timestamp: at,
		}
		s.messages = append(s.messages, user, placeholder)
		s.loading = true

		turn = Turn{Epoch: s.epoch, User: user.Clone(), Handle: Handle(placeholder.ID)}
		return true
	})
	return turn
}

// Update applies fns in order to the transcript as one commit.
func (s *Store) Update(fns ...Transform) {
	if len(fns) == 0 {
		return
	}

	s.commit(func() bool {
		next := s.messages
		for _, fn := range fns {
			next = fn(next)
		}
		s.messages = next
		return true
	})
}

// Remove deletes the message addressed by h. It reports whether a message
// was removed.
func (s *Store) Remove(h Handle) bool {
	removed := false
	s.commit(func() bool {
		i := s.messages.Find(h)
		if i < 0 {
			return false
		}
		next := make(Transcript, 0, len(s.messages)-1)
		next = append(next, s.messages[:i]...)
		next = append(next, s.messages[i+1:]...)
		s.messages = next
		removed = true
		return true
	})
	return removed
}

// Load replaces the transcript with history and binds sessionID.
// Used when resuming a persisted session.
func (s *Store) Load(history Transcript, sessionID string) {
	s.commit(func() bool {
		s.messages = history.Clone()
		s.sessionID = sessionID
		return true
	})
}

// SessionID returns the session the chat is bound to, if any.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// SetSessionID binds the chat to id unconditionally.
func (s *Store) SetSessionID(id string) {
	s.commit(func() bool {
		if s.sessionID == id {
			return false
		}
		s.sessionID = id
		return true
	})
}

// BindSession sets the session id only if epoch is still current and no
// session is bound yet. It reports whether the binding was applied.
func (s *Store) BindSession(epoch uint64, id string) bool {
	bound := false
	s.commit(func() bool {
		if s.epoch != epoch || s.sessionID != "" || id == "" {
			return false
		}
		s.sessionID = id
		bound = true
		return true
	})
	return bound
}

// Loading reports whether a response is pending.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetLoading sets the loading indicator.
func (s *Store) SetLoading(loading bool) {
	s.commit(func() bool {
		if s.loading == loading {
			return false
		}
		s.loading = loading
		return true
	})
}

// FinishLoading clears the loading indicator if epoch is still current.
// Only the first call that finds the flag set reports true.
func (s *Store) FinishLoading(epoch uint64) bool {
	cleared := false
	s.commit(func() bool {
		if s.epoch != epoch || !s.loading {
			return false
		}
		s.loading = false
		cleared = true
		return true
	})
	return cleared
}

// Draft returns the unsent input buffer.
func (s *Store) Draft() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// SetDraft replaces the unsent input buffer.
func (s *Store) SetDraft(draft string) {
	s.commit(func() bool {
		if s.draft == draft {
			return false
		}
		s.draft = draft
		return true
	})
}

// StageFile adds a file to the staged attachment list.
func (s *Store) StageFile(file Attachment) {
	s.commit(func() bool {
		if file.ID == "" {
			file.ID = s.newID()
		}
		s.files = append(s.files, file)
		return true
	})
}

// Files returns the staged attachments.
func (s *Store) Files() []Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Attachment(nil), s.files...)
}

// ClearFiles empties the staged attachment list.
func (s *Store) ClearFiles() {
	s.commit(func() bool {
		if len(s.files) == 0 {
			return false
		}
		s.files = nil
		return true
	})
}

// Reset clears the transcript, input buffer, attachments, loading flag and
// session id, and starts a new epoch.
func (s *Store) Reset() {
	s.commit(func() bool {
		s.messages = nil
		s.sessionID = ""
		s.loading = false
		s.draft = ""
		s.files = nil
		s.epoch++
		return true
	})
}

// commit runs mutate under the write lock and, if it reports a change,
// notifies subscribers with the resulting snapshot.
func (s *Store) commit(mutate func() bool) {
	s.mu.Lock()
	if !mutate() {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:  s.messages.Clone(),
		SessionID: s.sessionID,
		Loading:   s.loading,
		Draft:     s.draft,
		Files:     append([]Attachment(nil), s.files...),
		Epoch:     s.epoch,
		Version:   s.version,
	}
}
