package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/victorivanov/retrostate/internal/bootstrap"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHistory    = 50
	defaultFetchLimit = 4
)

// Source supplies raw records for a bootstrap.
type Source interface {
	FetchUsers(ctx context.Context) ([]store.RawUser, error)
	FetchChannels(ctx context.Context) ([]store.RawChannel, error)
	FetchPreferences(ctx context.Context, userID int64) (map[int64]models.Preference, error)
	FetchRecentMessages(ctx context.Context, channelID int64, limit int) ([]store.RawMessage, error)
}

// PresenceSource supplies live presence statuses.
type PresenceSource interface {
	GetPresences(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Report counts what a bootstrap loaded and skipped.
type Report struct {
	Users     int `json:"users"`
	Channels  int `json:"channels"`
	Hidden    int `json:"hidden"`
	Messages  int `json:"messages"`
	Presences int `json:"presences"`
	Rejected  int `json:"rejected"`
}

// Loader fills a session's stores from a Source.
type Loader struct {
	src        Source
	presence   PresenceSource
	history    int
	fetchLimit int
	log        *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPresence adds a presence source. Without one, statuses stay as fetched.
func WithPresence(p PresenceSource) Option {
	return func(l *Loader) { l.presence = p }
}

// WithHistory sets how many recent messages are loaded per channel.
func WithHistory(n int) Option {
	return func(l *Loader) {
		if n >= 0 {
			l.history = n
		}
	}
}

// WithFetchLimit bounds concurrent message fetches.
func WithFetchLimit(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.fetchLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

func New(src Source, opts ...Option) *Loader {
	l := &Loader{
		src:        src,
		history:    defaultHistory,
		fetchLimit: defaultFetchLimit,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load bootstraps sess: users, the session user's preferences, the channels
// the session user may see and their recent history, then presence. Bad
// records are skipped and counted; fetch failures abort the load.
func (l *Loader) Load(ctx context.Context, sess *store.Session) (Report, error) {
	var rep Report
	me := sess.Me()

	users, err := l.src.FetchUsers(ctx)
	if err != nil {
		return rep, err
	}
	for _, raw := range users {
		if _, err := sess.Users.IngestUser(raw); err != nil {
			rep.Rejected++
			continue
		}
		rep.Users++
	}
	if !sess.Users.Has(me) {
		return rep, fmt.Errorf("session user %d: %w", me, store.ErrUserNotFound)
	}

	prefs, err := l.src.FetchPreferences(ctx, me)
	if err != nil {
		return rep, err
	}
	for channelID, p := range prefs {
		if err := sess.Users.SetPreference(me, channelID, p); err != nil {
			return rep, err
		}
	}

	rawChannels, err := l.src.FetchChannels(ctx)
	if err != nil {
		return rep, err
	}
	catalog := make([]models.Channel, 0, len(rawChannels))
	for _, raw := range rawChannels {
		ch, err := store.NormalizeChannel(raw)
		if err != nil {
			l.log.Warn("skipping channel", "channel_id", raw.ID.Int64(), "error", err)
			rep.Rejected++
			continue
		}
		catalog = append(catalog, ch)
	}

	visible := bootstrap.NewResolver(sess.Users).Resolve(me, catalog)
	rep.Hidden = len(catalog) - len(visible)
	for _, ch := range visible {
		if _, err := sess.Channels.IngestChannel(store.RawFromChannel(ch)); err != nil {
			rep.Rejected++
			continue
		}
		rep.Channels++
	}

	if l.history > 0 {
		n, rejected, err := l.loadHistory(ctx, sess, visible)
		rep.Messages, rep.Rejected = n, rep.Rejected+rejected
		if err != nil {
			return rep, err
		}
	}

	if l.presence != nil {
		rep.Presences = l.loadPresence(ctx, sess)
	}

	l.log.Info("bootstrap complete",
		"user_id", me,
		"users", rep.Users,
		"channels", rep.Channels,
		"hidden", rep.Hidden,
		"messages", rep.Messages,
		"rejected", rep.Rejected,
	)
	return rep, nil
}

// loadHistory fetches recent messages for every channel concurrently and
// ingests them in channel order.
func (l *Loader) loadHistory(ctx context.Context, sess *store.Session, channels []models.Channel) (loaded, rejected int, err error) {
	batches := make([][]store.RawMessage, len(channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.fetchLimit)
	for i, ch := range channels {
		g.Go(func() error {
			msgs, err := l.src.FetchRecentMessages(gctx, ch.ID, l.history)
			if err != nil {
				return err
			}
			batches[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	for i, ch := range channels {
		for _, raw := range batches[i] {
			if _, err := sess.Channels.IngestMessage(ch.ID, raw); err != nil {
				if !errors.Is(err, store.ErrConflict) {
					rejected++
				}
				continue
			}
			loaded++
		}
	}
	return loaded, rejected, nil
}

// loadPresence overlays live statuses. Presence is best effort: a failure
// is logged and the fetched statuses stay.
func (l *Loader) loadPresence(ctx context.Context, sess *store.Session) int {
	var ids []int64
	for id := range sess.Users.OrderedIDs() {
		ids = append(ids, id)
	}
	statuses, err := l.presence.GetPresences(ctx, ids)
	if err != nil {
		l.log.Warn("presence unavailable", "error", err)
		return 0
	}
	n := 0
	for id, status := range statuses {
		if err := sess.Users.SetStatus(id, models.Status(status)); err == nil {
			n++
		}
	}
	return n
}
