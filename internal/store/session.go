package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/victorivanov/retrostate/internal/models"
)

// Session bundles the stores of one signed-in user. It is created at sign-in
// and discarded with Close; nothing outlives it.
type Session struct {
	ID       uuid.UUID
	Users    *UserStore
	Channels *ChannelStore
	Started  time.Time

	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex // guards closed and session user switches
	closed bool
}

// NewSession creates empty stores for session user me. The channel store
// reads sidebar preferences from the user store.
func NewSession(me int64, opts ...Option) *Session {
	cfg := newOptions(opts)
	users := NewUserStore(opts...)
	users.SetMe(me)

	s := &Session{
		ID:       uuid.New(),
		Users:    users,
		Channels: NewChannelStore(me, users, opts...),
		now:      time.Now,
	}
	s.Started = s.now()
	s.log = cfg.log.With("session_id", s.ID.String())
	s.log.Info("session started", "user_id", me)
	return s
}

// Me returns the session user's id.
func (s *Session) Me() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := s.Users.Me()
	return id
}

// PostMessage writes a message as authorID into channelID, stamped with the
// current time.
func (s *Session) PostMessage(channelID, authorID int64, content string) (models.Message, error) {
	if s.isClosed() {
		return models.Message{}, ErrSessionClosed
	}
	return s.Channels.PostMessage(channelID, authorID, content, s.now())
}

// SetMe switches the session user in both stores. Concurrent switches are
// serialized so the stores never settle on different users, and Me reports
// the new user only once both stores hold it.
func (s *Session) SetMe(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Channels.SetMe(userID)
	s.Users.SetMe(userID)
}

// Close discards all session state. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.Channels.reset()
	s.Users.reset()
	s.log.Info("session closed", "duration", s.now().Sub(s.Started).String())
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.isClosed()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
