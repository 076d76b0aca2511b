package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/victorivanov/retrostate/internal/loader"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
)

// snapshot is a catalog dump. Preferences are keyed by user id, then
// channel id.
type snapshot struct {
	Users       []store.RawUser                                     `json:"users"`
	Channels    []store.RawChannel                                  `json:"channels"`
	Preferences map[snowflake.ID]map[snowflake.ID]models.Preference `json:"preferences"`
	Messages    []store.RawMessage                                  `json:"messages"`
}

// FetchUsers, FetchChannels, FetchPreferences and FetchRecentMessages make
// a snapshot a loader.Source.

func (s *snapshot) FetchUsers(context.Context) ([]store.RawUser, error) {
	return s.Users, nil
}

func (s *snapshot) FetchChannels(context.Context) ([]store.RawChannel, error) {
	return s.Channels, nil
}

func (s *snapshot) FetchPreferences(_ context.Context, userID int64) (map[int64]models.Preference, error) {
	out := make(map[int64]models.Preference)
	for ch, p := range s.Preferences[snowflake.ID(userID)] {
		out[ch.Int64()] = p
	}
	return out, nil
}

func (s *snapshot) FetchRecentMessages(_ context.Context, channelID int64, limit int) ([]store.RawMessage, error) {
	var out []store.RawMessage
	for _, m := range s.Messages {
		if m.ChannelID.Int64() == channelID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type resolveOutput struct {
	SessionID string              `json:"session_id"`
	UserID    snowflake.ID        `json:"user_id"`
	Report    loader.Report       `json:"report"`
	Indices   store.Indices       `json:"indices"`
	Channels  []models.Channel    `json:"channels"`
	Days      map[string][]string `json:"days"`
}

func runResolve(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "error: usage: retrostate-cli resolve <user-id> <snapshot.json>")
		return 1
	}
	userID, err := snowflake.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	snap, err := readSnapshot(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	out, err := resolve(context.Background(), userID, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func readSnapshot(path string) (*snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &snap, nil
}

// resolve loads snap into a fresh session for userID. Rejected records are
// counted in the report, not fatal.
func resolve(ctx context.Context, userID int64, snap *snapshot) (*resolveOutput, error) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := store.NewSession(userID, store.WithLogger(quiet))
	defer sess.Close()

	rep, err := loader.New(snap, loader.WithLogger(quiet)).Load(ctx, sess)
	if err != nil {
		return nil, err
	}

	out := &resolveOutput{
		SessionID: sess.ID.String(),
		UserID:    snowflake.ID(userID),
		Report:    rep,
		Indices:   sess.Channels.Indices(),
		Channels:  sess.Channels.ListVisible(userID),
		Days:      make(map[string][]string),
	}
	for _, ch := range out.Channels {
		if days, err := sess.Channels.Days(ch.ID); err == nil && len(days) > 0 {
			out.Days[snowflake.ID(ch.ID).String()] = days
		}
	}
	return out, nil
}
