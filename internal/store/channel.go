package store

import (
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/victorivanov/retrostate/internal/bootstrap"
	"github.com/victorivanov/retrostate/internal/entity"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/permissions"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/timeline"
)

// Indices are the session user's derived channel lists.
type Indices struct {
	Rooms  []int64 `json:"rooms"`
	Direct []int64 `json:"direct"`
	Mine   []int64 `json:"mine"`
}

type channelRecord struct {
	channel  models.Channel
	timeline *timeline.Timeline
}

// keepTimeline overwrites the channel fields of a record while preserving
// the timeline attached on first ingest.
func keepTimeline(dst *channelRecord, src channelRecord) {
	dst.channel = src.channel
}

// ChannelStore owns channel entities, one timeline per channel and the
// rooms/direct/mine indices of the session user. Every id in an index is
// present in the entity table.
type ChannelStore struct {
	mu       sync.RWMutex
	me       int64
	entities *entity.Table[int64, channelRecord]
	rooms    []int64
	direct   []int64
	mine     []int64
	detached map[int64]struct{}

	resolver *bootstrap.Resolver
	tlOpts   []timeline.Option
	ids      *snowflake.Generator
	log      *slog.Logger
	metrics  Recorder
}

// NewChannelStore creates an empty ChannelStore for session user me.
// Visibility decisions read preferences from prefs.
func NewChannelStore(me int64, prefs bootstrap.PreferenceLookup, opts ...Option) *ChannelStore {
	cfg := newOptions(opts)
	if cfg.ids == nil {
		cfg.ids, _ = snowflake.NewGenerator(0, 0)
	}
	return &ChannelStore{
		me:       me,
		entities: entity.New(entity.WithMerge[int64, channelRecord](keepTimeline)),
		rooms:    []int64{},
		direct:   []int64{},
		mine:     []int64{},
		detached: make(map[int64]struct{}),
		resolver: bootstrap.NewResolver(prefs),
		tlOpts:   cfg.timeline,
		ids:      cfg.ids,
		log:      cfg.log,
		metrics:  cfg.metrics,
	}
}

// SetMe changes the session user and rebuilds the indices.
func (s *ChannelStore) SetMe(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.me = userID
	s.rooms, s.direct, s.mine = []int64{}, []int64{}, []int64{}
	clear(s.detached)
	for id := range s.entities.OrderedIDs() {
		s.reindex(id)
	}
}

// Me returns the user the indices are built for.
func (s *ChannelStore) Me() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// IngestChannel normalizes raw into the channel table. An existing channel
// keeps its position and its timeline.
func (s *ChannelStore) IngestChannel(raw RawChannel) (int64, error) {
	ch, err := NormalizeChannel(raw)
	if err != nil {
		s.reject("channel", err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, created := s.entities.Upsert(ch.ID, channelRecord{channel: ch})
	if created {
		rec.timeline = timeline.New(ch.ID, s.tlOpts...)
	}
	s.reindex(ch.ID)
	s.metrics.Ingested("channel")
	return ch.ID, nil
}

// IngestMessage appends raw to the timeline of channelID. The author's
// membership is not checked: fetched history and feed events may carry
// messages by users who have since left. PostMessage enforces it.
func (s *ChannelStore) IngestMessage(channelID int64, raw RawMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		err := channelNotFound(channelID)
		s.reject("message", err)
		return 0, err
	}
	msg, err := NormalizeMessage(raw)
	if err != nil {
		s.reject("message", err)
		return 0, err
	}
	if err := s.append(rec, msg); err != nil {
		s.reject("message", err)
		return 0, err
	}
	s.metrics.Ingested("message")
	return msg.ID, nil
}

// PostMessage records a message written locally by authorID. The id is a
// fresh snowflake above every id already in the channel.
func (s *ChannelStore) PostMessage(channelID, authorID int64, content string, at time.Time) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, malformed("message content must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return models.Message{}, channelNotFound(channelID)
	}
	if !rec.channel.IsMember(authorID) {
		return models.Message{}, notAMember(authorID, channelID)
	}

	msg := models.Message{
		ID:        s.ids.GenerateAfter(rec.timeline.MaxID()).Int64(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: at.UTC(),
	}
	if err := s.append(rec, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *ChannelStore) append(rec *channelRecord, msg models.Message) error {
	err := rec.timeline.Append(msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, timeline.ErrChannelMismatch):
		return malformed("%v", err)
	case errors.Is(err, timeline.ErrDuplicateMessage):
		return conflict("DUPLICATE_MESSAGE", "message already in timeline", msg.ID)
	default:
		return err
	}
}

// Join adds userID to the channel's members. Direct channels have a fixed
// pair of members, so only a participant can join one, which re-attaches it
// to the session user's direct list.
func (s *ChannelStore) Join(userID, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return channelNotFound(channelID)
	}
	ch := &rec.channel
	if ch.IsDirect() {
		if !ch.IsMember(userID) {
			return forbidden("DIRECT_CHANNEL_CLOSED", "direct channels have exactly two members", userID, channelID)
		}
		if userID == s.me {
			delete(s.detached, channelID)
		}
	} else {
		ch.Members = ch.WithMember(userID)
	}
	s.reindex(channelID)
	return nil
}

// Leave removes userID from the channel's members. The entity and its
// history stay in the table. Leaving a direct channel only detaches it from
// the session user's direct list. An owner hands the channel to the first
// remaining member and cannot leave a channel nobody else is in, so the
// owner is always a member.
func (s *ChannelStore) Leave(userID, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return channelNotFound(channelID)
	}
	ch := &rec.channel
	if !ch.IsMember(userID) {
		return notAMember(userID, channelID)
	}
	if ch.IsDirect() {
		if userID == s.me {
			s.detached[channelID] = struct{}{}
		}
	} else {
		rest := ch.WithoutMember(userID)
		if ch.IsOwner(userID) {
			if len(rest) == 0 {
				return forbidden("OWNER_LAST_MEMBER", "the owner cannot leave a channel nobody else is in", userID, channelID)
			}
			next := rest[0]
			ch.OwnerID = &next
			s.log.Debug("channel ownership transferred", "channel_id", channelID, "from", userID, "to", next)
		}
		ch.Members = rest
	}
	s.reindex(channelID)
	return nil
}

// Remove deletes a channel, its timeline and its index entries.
func (s *ChannelStore) Remove(channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entities.Remove(channelID) {
		return channelNotFound(channelID)
	}
	s.rooms = without(s.rooms, channelID)
	s.direct = without(s.direct, channelID)
	s.mine = without(s.mine, channelID)
	delete(s.detached, channelID)
	return nil
}

// ListVisible returns the stored channels userID may see, in table order.
func (s *ChannelStore) ListVisible(userID int64) []models.Channel {
	return s.resolver.Resolve(userID, s.Channels())
}

// Channels returns copies of every stored channel in table order.
func (s *ChannelStore) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Channel, 0, s.entities.Len())
	for _, rec := range s.entities.All() {
		out = append(out, rec.channel.Clone())
	}
	return out
}

// Get returns a copy of the channel.
func (s *ChannelStore) Get(channelID int64) (models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return models.Channel{}, channelNotFound(channelID)
	}
	return rec.channel.Clone(), nil
}

// Has reports whether the channel is stored.
func (s *ChannelStore) Has(channelID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Has(channelID)
}

// Len returns the number of stored channels.
func (s *ChannelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Len()
}

// OrderedIDs yields channel ids in first-ingest order from a snapshot taken
// when iteration starts.
func (s *ChannelStore) OrderedIDs() iter.Seq[int64] {
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

// Indices returns copies of the rooms, direct and mine lists.
func (s *ChannelStore) Indices() Indices {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Indices{
		Rooms:  slices.Clone(s.rooms),
		Direct: slices.Clone(s.direct),
		Mine:   slices.Clone(s.mine),
	}
}

// Permissions returns what userID may do in the channel.
func (s *ChannelStore) Permissions(userID, channelID int64) (permissions.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return permissions.PermNone, channelNotFound(channelID)
	}
	return s.resolver.Permissions(userID, &rec.channel), nil
}

// BucketsFor returns the author groups of a channel's day bucket.
func (s *ChannelStore) BucketsFor(channelID int64, dayKey string) ([]timeline.Group, error) {
	if !timeline.ValidDayKey(dayKey) {
		return nil, malformed("day key %q is not YYYY-MM-DD", dayKey)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return nil, channelNotFound(channelID)
	}
	return rec.timeline.BucketsFor(dayKey), nil
}

// Days returns the channel's populated day keys, oldest first.
func (s *ChannelStore) Days(channelID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return nil, channelNotFound(channelID)
	}
	return rec.timeline.Days(), nil
}

// SetActiveBucket focuses a day bucket of the channel.
func (s *ChannelStore) SetActiveBucket(channelID int64, dayKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return channelNotFound(channelID)
	}
	if err := rec.timeline.SetActiveBucket(dayKey); err != nil {
		return malformed("%v", err)
	}
	return nil
}

// ActiveBucket returns the focused day key, empty when none is set.
func (s *ChannelStore) ActiveBucket(channelID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return "", channelNotFound(channelID)
	}
	return rec.timeline.Active(), nil
}

// MessageIDs returns the channel's message ids in arrival order.
func (s *ChannelStore) MessageIDs(channelID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return nil, channelNotFound(channelID)
	}
	return rec.timeline.Order(), nil
}

// Page returns up to limit messages arriving before the cursor message, in
// arrival order. A zero cursor pages from the newest message.
func (s *ChannelStore) Page(channelID, before int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return nil, channelNotFound(channelID)
	}
	return rec.timeline.Page(before, limit), nil
}

// Message returns one message of the channel.
func (s *ChannelStore) Message(channelID, messageID int64) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entities.Get(channelID)
	if !ok {
		return models.Message{}, false
	}
	return rec.timeline.Message(messageID)
}

type index int

const (
	indexNone index = iota
	indexRooms
	indexDirect
	indexMine
)

// classify decides which of the session user's lists a channel belongs to.
func (s *ChannelStore) classify(ch *models.Channel) index {
	if s.me == 0 {
		return indexNone
	}
	member := ch.IsMember(s.me)
	switch {
	case ch.IsDirect():
		if _, gone := s.detached[ch.ID]; member && !gone {
			return indexDirect
		}
	case member:
		return indexMine
	case ch.Access != models.AccessPrivate && s.resolver.Visible(s.me, ch):
		return indexRooms
	}
	return indexNone
}

// reindex moves channelID into the list it now belongs to. A channel that
// stays in the same list keeps its position.
func (s *ChannelStore) reindex(channelID int64) {
	rec, ok := s.entities.Get(channelID)
	want := indexNone
	if ok {
		want = s.classify(&rec.channel)
	}

	lists := [...]*[]int64{indexRooms: &s.rooms, indexDirect: &s.direct, indexMine: &s.mine}
	for i, list := range lists {
		idx := index(i)
		if list == nil {
			continue
		}
		if idx == want {
			if !slices.Contains(*list, channelID) {
				*list = append(*list, channelID)
				s.log.Debug("channel indexed", "channel_id", channelID, "index", idx.String())
			}
			continue
		}
		*list = without(*list, channelID)
	}
}

func (i index) String() string {
	switch i {
	case indexRooms:
		return "rooms"
	case indexDirect:
		return "direct"
	case indexMine:
		return "mine"
	}
	return "none"
}

func without(ids []int64, id int64) []int64 {
	return slices.DeleteFunc(ids, func(v int64) bool { return v == id })
}

func (s *ChannelStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = entity.New(entity.WithMerge[int64, channelRecord](keepTimeline))
	s.rooms, s.direct, s.mine = []int64{}, []int64{}, []int64{}
	clear(s.detached)
	s.me = 0
}

func (s *ChannelStore) reject(kind string, err error) {
	s.log.Warn("record rejected", "kind", kind, "error", err)
	s.metrics.Rejected(kind, errorCode(err))
}
