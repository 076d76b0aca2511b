package store

import (
	"time"

	"github.com/victorivanov/retrostate/internal/snowflake"
)

const (
	user1 int64 = 1
	user2 int64 = 2
	user3 int64 = 3
)

func i64(v int64) *int64 { return &v }

func idPtr(v int64) *snowflake.ID {
	id := snowflake.ID(v)
	return &id
}

func ids(vs ...int64) []snowflake.ID {
	out := make([]snowflake.ID, len(vs))
	for i, v := range vs {
		out[i] = snowflake.ID(v)
	}
	return out
}

// sampleChannels is the six-channel layout used across the store tests.
func sampleChannels() []RawChannel {
	return []RawChannel{
		{ID: 1, Name: "channel1", Access: "public", OwnerID: idPtr(user2), Members: ids(user1, user2)},
		{ID: 2, Name: "channel2", Access: "protected", OwnerID: idPtr(user1), Members: ids(user1)},
		{ID: 3, Name: "channel3", Access: "protected", OwnerID: idPtr(user2), Members: ids(user2, user1)},
		{ID: 4, Name: "channel4", Access: "private", OwnerID: idPtr(user3), Members: ids(user3, user1)},
		{ID: 5, Name: "channel5", Access: "protected", OwnerID: idPtr(user3), Members: ids(user3)},
		{ID: 6, Name: "channel6", Access: "private", OwnerID: idPtr(user2), Members: ids(user2, user3)},
	}
}

var base = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func rawMsg(id, channelID, authorID int64, at time.Time) RawMessage {
	ms := at.UnixMilli()
	return RawMessage{
		ID:        snowflake.ID(id),
		ChannelID: snowflake.ID(channelID),
		AuthorID:  snowflake.ID(authorID),
		Timestamp: &ms,
		Content:   "msg",
	}
}

// countingRecorder tallies ingest outcomes.
type countingRecorder struct {
	ingested map[string]int
	rejected map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ingested: map[string]int{}, rejected: map[string]int{}}
}

func (r *countingRecorder) Ingested(kind string)       { r.ingested[kind]++ }
func (r *countingRecorder) Rejected(kind, code string) { r.rejected[kind+"/"+code]++ }
