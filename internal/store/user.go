package store

import (
	"iter"
	"log/slog"
	"sync"

	"github.com/victorivanov/retrostate/internal/entity"
	"github.com/victorivanov/retrostate/internal/models"
)

// UserStore owns user entities, their per-channel preferences and the
// session user's id.
type UserStore struct {
	mu       sync.RWMutex
	entities *entity.Table[int64, models.User]
	me       int64
	log      *slog.Logger
	metrics  Recorder
}

// NewUserStore creates an empty UserStore.
func NewUserStore(opts ...Option) *UserStore {
	cfg := newOptions(opts)
	return &UserStore{
		entities: entity.New[int64, models.User](),
		log:      cfg.log,
		metrics:  cfg.metrics,
	}
}

// SetMe records the session user. Zero clears it.
func (s *UserStore) SetMe(userID int64) {
	s.mu.Lock()
	s.me = userID
	s.mu.Unlock()
}

// Me returns the session user; ok is false when none is set.
func (s *UserStore) Me() (userID int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me, s.me != 0
}

// IngestUser normalizes raw into the user table. Fields of an existing user
// are overwritten; an incoming preference map replaces the stored one only
// when it is non-empty.
func (s *UserStore) IngestUser(raw RawUser) (int64, error) {
	u, err := NormalizeUser(raw)
	if err != nil {
		s.reject("user", err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Username != "" {
		for id, other := range s.entities.All() {
			if id != u.ID && other.Username == u.Username {
				err := conflict("USERNAME_TAKEN", "username is already in use", u.ID, id)
				s.reject("user", err)
				return 0, err
			}
		}
	}

	if existing, ok := s.entities.Get(u.ID); ok && u.Preferences == nil {
		u.Preferences = existing.Preferences
	}
	s.entities.Upsert(u.ID, u)
	s.metrics.Ingested("user")
	return u.ID, nil
}

// SetPreference upserts the user's preference for channelID. The channel id
// is not checked against any channel store.
func (s *UserStore) SetPreference(userID, channelID int64, pref models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.entities.Get(userID)
	if !ok {
		return userNotFound(userID)
	}
	prefs := make(map[int64]models.Preference, len(u.Preferences)+1)
	for k, v := range u.Preferences {
		prefs[k] = v
	}
	prefs[channelID] = pref
	u.Preferences = prefs
	s.log.Debug("preference set", "user_id", userID, "channel_id", channelID, "sidebar", pref.Sidebar)
	return nil
}

// SetStatus updates a user's presence status.
func (s *UserStore) SetStatus(userID int64, status models.Status) error {
	if status == "" {
		return malformed("status must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.entities.Get(userID)
	if !ok {
		return userNotFound(userID)
	}
	u.Status = status
	return nil
}

// Get returns a copy of the user.
func (s *UserStore) Get(userID int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.entities.Get(userID)
	if !ok {
		return models.User{}, userNotFound(userID)
	}
	return u.Clone(), nil
}

// Has reports whether the user is known.
func (s *UserStore) Has(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Has(userID)
}

// Len returns the number of users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Len()
}

// OrderedIDs yields user ids in first-ingest order. The sequence reads a
// snapshot taken when iteration starts.
func (s *UserStore) OrderedIDs() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		s.mu.RLock()
		ids := make([]int64, 0, s.entities.Len())
		for id := range s.entities.OrderedIDs() {
			ids = append(ids, id)
		}
		s.mu.RUnlock()

		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// ChannelPreference implements bootstrap.PreferenceLookup.
func (s *UserStore) ChannelPreference(userID, channelID int64) (models.Preference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.entities.Get(userID)
	if !ok {
		return models.Preference{}, false
	}
	return u.Preference(channelID)
}

func (s *UserStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = entity.New[int64, models.User]()
	s.me = 0
}

func (s *UserStore) reject(kind string, err error) {
	s.log.Warn("record rejected", "kind", kind, "error", err)
	s.metrics.Rejected(kind, errorCode(err))
}
