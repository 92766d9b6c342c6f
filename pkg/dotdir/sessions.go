package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const sessionsFile = "sessions.json"

// SessionState remembers the last session used with each agent so that
// "agentconsole chat" can pick up where it left off.
type SessionState struct {
	// Agents maps a virtual agent id to its last session.
	Agents map[string]SessionRef `json:"agents"`
}

// SessionRef points at a server-side session.
type SessionRef struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Last returns the remembered session for agentID, or "".
func (s *SessionState) Last(agentID string) string {
	if s == nil {
		return ""
	}
	return s.Agents[agentID].ID
}

// Remember records sessionID as the last session of agentID.
func (s *SessionState) Remember(agentID, sessionID string, at time.Time) {
	if s.Agents == nil {
		s.Agents = make(map[string]SessionRef)
	}
	s.Agents[agentID] = SessionRef{ID: sessionID, UpdatedAt: at}
}

// Forget drops the remembered session of agentID.
func (s *SessionState) Forget(agentID string) {
	delete(s.Agents, agentID)
}

// LoadSessionState reads sessions.json from the target directory.
// It returns an empty state when the file or the directory does not exist.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &SessionState{}, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SessionState{}, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}
	return state, nil
}

// SaveSessionState writes sessions.json, creating ~/.agentconsole/ if needed.
func (m *Manager) SaveSessionState(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionsFile), data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// ClearSessionState removes sessions.json. A missing file is not an error.
func (m *Manager) ClearSessionState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, sessionsFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session state: %w", err)
	}
	return nil
}
