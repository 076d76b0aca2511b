package timeline

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/victorivanov/retrostate/internal/entity"
	"github.com/victorivanov/retrostate/internal/models"
)

// DefaultGap is the longest pause between two messages by the same author
// that still renders them as one group.
const DefaultGap = 15 * time.Minute

// DayKeyLayout is the format of day-bucket keys.
const DayKeyLayout = "2006-01-02"

var (
	ErrChannelMismatch  = errors.New("message belongs to another channel")
	ErrDuplicateMessage = errors.New("message already in timeline")
	ErrInvalidDayKey    = errors.New("invalid day key")
)

// Group is a run of consecutive messages by one author within a day.
type Group struct {
	AuthorID   int64   `json:"author_id,string"`
	MessageIDs []int64 `json:"message_ids"`
}

// Timeline indexes one channel's messages by calendar day and author run.
type Timeline struct {
	channelID int64
	gap       time.Duration
	loc       *time.Location

	messages *entity.Table[int64, models.Message]
	buckets  map[string][]*Group
	order    []int64
	active   string
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithGap sets the grouping threshold. Non-positive values are ignored.
func WithGap(d time.Duration) Option {
	return func(tl *Timeline) {
		if d > 0 {
			tl.gap = d
		}
	}
}

// WithLocation sets the time zone used to cut day buckets.
func WithLocation(loc *time.Location) Option {
	return func(tl *Timeline) {
		if loc != nil {
			tl.loc = loc
		}
	}
}

// New creates an empty timeline for channelID.
func New(channelID int64, opts ...Option) *Timeline {
	tl := &Timeline{
		channelID: channelID,
		gap:       DefaultGap,
		loc:       time.UTC,
		messages:  entity.New[int64, models.Message](),
		buckets:   make(map[string][]*Group),
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// DayKey returns the bucket key for ts in loc.
func DayKey(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(DayKeyLayout)
}

// ValidDayKey reports whether key is a well-formed day key.
func ValidDayKey(key string) bool {
	_, err := time.Parse(DayKeyLayout, key)
	return err == nil
}

// ChannelID returns the owning channel.
func (tl *Timeline) ChannelID() int64 {
	return tl.channelID
}

// Append adds msg to its day bucket and to the flat order. Placement uses the
// message's own timestamp; order follows arrival.
func (tl *Timeline) Append(msg models.Message) error {
	if msg.ChannelID != tl.channelID {
		return fmt.Errorf("%w: message %d is for channel %d, timeline is %d",
			ErrChannelMismatch, msg.ID, msg.ChannelID, tl.channelID)
	}
	if tl.messages.Has(msg.ID) {
		return fmt.Errorf("%w: %d", ErrDuplicateMessage, msg.ID)
	}

	key := DayKey(msg.Timestamp, tl.loc)
	groups := tl.buckets[key]
	if n := len(groups); n > 0 && tl.continues(groups[n-1], msg) {
		groups[n-1].MessageIDs = append(groups[n-1].MessageIDs, msg.ID)
	} else {
		tl.buckets[key] = append(groups, &Group{AuthorID: msg.AuthorID, MessageIDs: []int64{msg.ID}})
	}

	tl.messages.Upsert(msg.ID, msg)
	tl.order = append(tl.order, msg.ID)
	return nil
}

// continues reports whether msg extends group g.
func (tl *Timeline) continues(g *Group, msg models.Message) bool {
	if g.AuthorID != msg.AuthorID {
		return false
	}
	last, ok := tl.messages.Get(g.MessageIDs[len(g.MessageIDs)-1])
	if !ok {
		return false
	}
	gap := msg.Timestamp.Sub(last.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= tl.gap
}

// BucketsFor returns copies of the groups for dayKey, oldest group first.
// An unknown day yields an empty slice.
func (tl *Timeline) BucketsFor(dayKey string) []Group {
	groups := tl.buckets[dayKey]
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, Group{AuthorID: g.AuthorID, MessageIDs: slices.Clone(g.MessageIDs)})
	}
	return out
}

// Days returns the day keys that hold messages, in calendar order.
func (tl *Timeline) Days() []string {
	days := make([]string, 0, len(tl.buckets))
	for k := range tl.buckets {
		days = append(days, k)
	}
	sort.Strings(days)
	return days
}

// SetActiveBucket marks dayKey as the focused day. The day need not hold
// messages yet.
func (tl *Timeline) SetActiveBucket(dayKey string) error {
	if !ValidDayKey(dayKey) {
		return fmt.Errorf("%w: %q", ErrInvalidDayKey, dayKey)
	}
	tl.active = dayKey
	return nil
}

// Active returns the focused day key, or "" when none is set.
func (tl *Timeline) Active() string {
	return tl.active
}

// Order returns a copy of all message ids in arrival order.
func (tl *Timeline) Order() []int64 {
	return slices.Clone(tl.order)
}

// Len returns the number of messages.
func (tl *Timeline) Len() int {
	return len(tl.order)
}

// LastID returns the most recently appended message id, or 0.
func (tl *Timeline) LastID() int64 {
	if len(tl.order) == 0 {
		return 0
	}
	return tl.order[len(tl.order)-1]
}

// MaxID returns the largest message id held, or 0.
func (tl *Timeline) MaxID() int64 {
	if len(tl.order) == 0 {
		return 0
	}
	return slices.Max(tl.order)
}

// Message looks up a message by id.
func (tl *Timeline) Message(id int64) (models.Message, bool) {
	m, ok := tl.messages.Get(id)
	if !ok {
		return models.Message{}, false
	}
	return *m, true
}

// Page returns up to limit messages that precede the cursor in arrival
// order, oldest first. A zero cursor starts from the newest message. An
// unknown cursor yields an empty page.
func (tl *Timeline) Page(before int64, limit int) []models.Message {
	end := len(tl.order)
	if before != 0 {
		end = slices.Index(tl.order, before)
		if end < 0 {
			return []models.Message{}
		}
	}
	start := max(end-limit, 0)
	if limit <= 0 {
		start = end
	}

	out := make([]models.Message, 0, end-start)
	for _, id := range tl.order[start:end] {
		if m, ok := tl.messages.Get(id); ok {
			out = append(out, *m)
		}
	}
	return out
}
