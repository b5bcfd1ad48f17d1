package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/liftlog/internal/models"
)

var (
	// ErrSessionActive is returned when a session is started while another
	// one is still running. One session at a time per user.
	ErrSessionActive = errors.New("a workout session is already active")

	// ErrNoSession is returned by operations that need a running session.
	ErrNoSession = errors.New("no active workout session")
)

// SessionJournal persists the active session's starting snapshot and command
// log so a crash mid-workout loses nothing. *journal.DB satisfies it.
type SessionJournal interface {
	Begin(inst *models.WorkoutInstance) error
	Append(seq int, cmd Command) error
	Clear() error
}

// SessionManager owns the single-session-at-a-time invariant and the
// once-per-second tick that samples the session clock. All methods are safe
// for concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	session *Session
	seq     int
	stop    chan struct{}

	journal SessionJournal
	log     *slog.Logger

	// OnTick, when set, is invoked once per second with the current elapsed
	// active time while a session is running.
	OnTick func(elapsed time.Duration)
}

// NewSessionManager creates a manager. journal may be nil to disable
// crash recovery.
func NewSessionManager(journal SessionJournal, log *slog.Logger) *SessionManager {
	return &SessionManager{journal: journal, log: log}
}

// Start materializes a new session from the template. Fails with
// ErrSessionActive if one is already running.
func (m *SessionManager) Start(tpl *models.WorkoutTemplate) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return nil, ErrSessionActive
	}

	s := NewSession(tpl)
	if m.journal != nil {
		if err := m.journal.Begin(s.Instance); err != nil {
			m.log.Warn("journal begin failed", "error", err)
		}
	}
	m.adopt(s)
	m.log.Info("session started", "template", tpl.Name, "instance_id", s.Instance.ID)
	return s, nil
}

// Recover adopts a session rebuilt from a journal snapshot and command log.
func (m *SessionManager) Recover(inst *models.WorkoutInstance, log []Command) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return nil, ErrSessionActive
	}

	s, err := ResumeSession(inst, log)
	if err != nil {
		return nil, err
	}
	m.adopt(s)
	m.seq = len(log)
	m.log.Info("session recovered", "instance_id", s.Instance.ID, "commands", len(log))
	return s, nil
}

func (m *SessionManager) adopt(s *Session) {
	m.session = s
	m.seq = 0
	m.stop = make(chan struct{})
	go m.tick(s, m.stop)
}

// tick samples elapsed time once per second until the session ends.
func (m *SessionManager) tick(s *Session, stop chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if f := m.OnTick; f != nil {
				f(s.Clock.Elapsed())
			}
		}
	}
}

// Active returns the running session, or nil.
func (m *SessionManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Apply applies one edit command to the active session and journals it.
func (m *SessionManager) Apply(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	if err := m.session.Apply(cmd); err != nil {
		return err
	}
	if m.journal != nil {
		if err := m.journal.Append(m.seq, cmd); err != nil {
			m.log.Warn("journal append failed", "error", err)
		}
	}
	m.seq++
	return nil
}

// Pause pauses the active session's clock.
func (m *SessionManager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	m.session.Clock.Pause()
	return nil
}

// Resume resumes the active session's clock.
func (m *SessionManager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	m.session.Clock.Resume()
	return nil
}

// Finish stamps the active session's instance as finished and returns it.
// The session slot and crash journal stay in place until Release, so a
// caller whose persist fails can Reopen the session instead of losing the
// workout.
func (m *SessionManager) Finish() (*models.WorkoutInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}

	inst := m.session.Instance
	now := timeNow()
	inst.FinishedAt = &now
	inst.IsActive = false
	return inst, nil
}

// Reopen reverts a finished-but-unreleased session to active after a failed
// persist. The command log and clock keep running.
func (m *SessionManager) Reopen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}

	inst := m.session.Instance
	inst.FinishedAt = nil
	inst.IsActive = true
	inst.Changes = nil
	m.log.Info("session reopened", "instance_id", inst.ID)
	return nil
}

// Release drops the finished session, stops the tick, and clears the crash
// journal. Call it only once the finished instance is safely persisted.
func (m *SessionManager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}

	inst := m.session.Instance
	m.release()
	duration := timeNow().Sub(inst.StartedAt)
	if inst.FinishedAt != nil {
		duration = inst.FinishedAt.Sub(inst.StartedAt)
	}
	m.log.Info("session finished", "instance_id", inst.ID, "duration_sec", int(duration.Seconds()))
	return nil
}

// Discard drops the active session without persisting anything.
func (m *SessionManager) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	m.release()
	m.log.Info("session discarded")
	return nil
}

func (m *SessionManager) release() {
	close(m.stop)
	m.session = nil
	m.seq = 0
	if m.journal != nil {
		if err := m.journal.Clear(); err != nil {
			m.log.Warn("journal clear failed", "error", err)
		}
	}
}
