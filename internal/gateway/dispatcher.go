package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/victorivanov/retrostate/internal/bootstrap"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/observability"
	"github.com/victorivanov/retrostate/internal/store"
)

// Event results reported to the feed metrics.
const (
	resultApplied  = "applied"
	resultIgnored  = "ignored"
	resultRejected = "rejected"
)

// Dispatcher applies DISPATCH events from the gateway to a session's stores.
type Dispatcher struct {
	sess     *store.Session
	resolver *bootstrap.Resolver
	log      *slog.Logger
}

func NewDispatcher(sess *store.Session, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sess:     sess,
		resolver: bootstrap.NewResolver(sess.Users),
		log:      log,
	}
}

// Dispatch applies one event. Events for records the session does not hold
// are ignored; undecodable or rejected records return an error.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) error {
	result, err := d.apply(event, data)
	if err != nil {
		result = resultRejected
		d.log.Warn("feed event rejected", "event", event, "error", err)
	}
	observability.IncFeedEvent(event, result)
	return err
}

func (d *Dispatcher) apply(event string, data json.RawMessage) (string, error) {
	switch event {
	case EventChannelCreate, EventChannelUpdate:
		return d.channelUpsert(data)

	case EventChannelDelete:
		var del ChannelDeleteData
		if err := json.Unmarshal(data, &del); err != nil {
			return "", fmt.Errorf("decoding %s: %w", event, err)
		}
		return ignoreMissing(d.sess.Channels.Remove(del.ID.Int64()))

	case EventMessageCreate:
		raw, err := store.DecodeMessage(data)
		if err != nil {
			return "", err
		}
		if _, err := store.NormalizeMessage(raw); err != nil {
			return "", err
		}
		_, err = d.sess.Channels.IngestMessage(raw.ChannelID.Int64(), raw)
		if errors.Is(err, store.ErrConflict) {
			return resultIgnored, nil
		}
		return ignoreMissing(err)

	case EventPresenceUpdate:
		var p PresenceUpdateData
		if err := json.Unmarshal(data, &p); err != nil {
			return "", fmt.Errorf("decoding %s: %w", event, err)
		}
		return ignoreMissing(d.sess.Users.SetStatus(p.UserID.Int64(), models.Status(p.Status)))

	case EventChannelMemberAdd, EventChannelMemberRemove:
		var m MemberEventData
		if err := json.Unmarshal(data, &m); err != nil {
			return "", fmt.Errorf("decoding %s: %w", event, err)
		}
		if event == EventChannelMemberAdd {
			return ignoreMissing(d.sess.Channels.Join(m.UserID.Int64(), m.ChannelID.Int64()))
		}
		err := d.sess.Channels.Leave(m.UserID.Int64(), m.ChannelID.Int64())
		if errors.Is(err, store.ErrNotAMember) {
			return resultIgnored, nil
		}
		return ignoreMissing(err)
	}
	return resultIgnored, nil
}

// channelUpsert stores a channel the session user may see. A stored channel
// that is no longer visible is dropped.
func (d *Dispatcher) channelUpsert(data json.RawMessage) (string, error) {
	raw, err := store.DecodeChannel(data)
	if err != nil {
		return "", err
	}
	ch, err := store.NormalizeChannel(raw)
	if err != nil {
		return "", err
	}

	if !d.resolver.Visible(d.sess.Me(), &ch) {
		if !d.sess.Channels.Has(ch.ID) {
			return resultIgnored, nil
		}
		return ignoreMissing(d.sess.Channels.Remove(ch.ID))
	}
	if _, err := d.sess.Channels.IngestChannel(store.RawFromChannel(ch)); err != nil {
		return "", err
	}
	return resultApplied, nil
}

// ignoreMissing treats references to unknown channels or users as ignored.
func ignoreMissing(err error) (string, error) {
	switch {
	case err == nil:
		return resultApplied, nil
	case errors.Is(err, store.ErrChannelNotFound), errors.Is(err, store.ErrUserNotFound):
		return resultIgnored, nil
	}
	return "", err
}
