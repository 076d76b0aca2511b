package timeline

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/victorivanov/retrostate/internal/models"
)

const channelID int64 = 100

// base is mid-morning so small offsets stay on the same UTC day.
var base = time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)

func msg(id, author int64, at time.Time) models.Message {
	return models.Message{ID: id, ChannelID: channelID, AuthorID: author, Content: "hi", Timestamp: at}
}

func mustAppend(t *testing.T, tl *Timeline, m models.Message) {
	t.Helper()
	if err := tl.Append(m); err != nil {
		t.Fatalf("Append(%d): %v", m.ID, err)
	}
}

func TestAppend_SameAuthorWithinGapGroups(t *testing.T) {
	tl := New(channelID)
	mustAppend(t, tl, msg(1, 7, base))
	mustAppend(t, tl, msg(2, 7, base.Add(5*time.Minute)))
	mustAppend(t, tl, msg(3, 7, base.Add(20*time.Minute))) // exactly 15m after #2

	groups := tl.BucketsFor("2026-04-07")
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %+v", len(groups), groups)
	}
	if !slices.Equal(groups[0].MessageIDs, []int64{1, 2, 3}) {
		t.Errorf("MessageIDs = %v, want [1 2 3]", groups[0].MessageIDs)
	}
}

func TestAppend_GapOverThresholdStartsNewGroup(t *testing.T) {
	tl := New(channelID)
	const user2 int64 = 2
	// T and T+1000000ms (16m40s) by the same author.
	mustAppend(t, tl, msg(1, user2, base))
	mustAppend(t, tl, msg(2, user2, base.Add(1000000*time.Millisecond)))

	groups := tl.BucketsFor("2026-04-07")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for i, g := range groups {
		if g.AuthorID != user2 {
			t.Errorf("group %d author = %d, want %d", i, g.AuthorID, user2)
		}
	}
}

func TestAppend_AuthorChangeStartsNewGroup(t *testing.T) {
	tl := New(channelID)
	mustAppend(t, tl, msg(1, 7, base))
	mustAppend(t, tl, msg(2, 8, base.Add(time.Second)))
	mustAppend(t, tl, msg(3, 7, base.Add(2*time.Second)))

	groups := tl.BucketsFor("2026-04-07")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
}

func TestAppend_CustomGap(t *testing.T) {
	tl := New(channelID, WithGap(time.Minute))
	mustAppend(t, tl, msg(1, 7, base))
	mustAppend(t, tl, msg(2, 7, base.Add(2*time.Minute)))

	if n := len(tl.BucketsFor("2026-04-07")); n != 2 {
		t.Fatalf("expected 2 groups with a 1m gap, got %d", n)
	}
}

func TestAppend_DayBoundarySplitsBuckets(t *testing.T) {
	tl := New(channelID)
	late := time.Date(2026, 4, 7, 23, 58, 0, 0, time.UTC)
	mustAppend(t, tl, msg(1, 7, late))
	mustAppend(t, tl, msg(2, 7, late.Add(4*time.Minute)))

	if n := len(tl.BucketsFor("2026-04-07")); n != 1 {
		t.Errorf("2026-04-07 groups = %d, want 1", n)
	}
	if n := len(tl.BucketsFor("2026-04-08")); n != 1 {
		t.Errorf("2026-04-08 groups = %d, want 1", n)
	}
	if !slices.Equal(tl.Days(), []string{"2026-04-07", "2026-04-08"}) {
		t.Errorf("Days = %v", tl.Days())
	}
}

func TestAppend_LocationMovesBucket(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	tl := New(channelID, WithLocation(tokyo))
	// 20:00 UTC is 05:00 the next day in JST.
	mustAppend(t, tl, msg(1, 7, time.Date(2026, 4, 7, 20, 0, 0, 0, time.UTC)))

	if n := len(tl.BucketsFor("2026-04-08")); n != 1 {
		t.Fatalf("expected message in the JST day bucket, Days = %v", tl.Days())
	}
}

func TestAppend_OutOfOrderUsesOwnTimestamp(t *testing.T) {
	tl := New(channelID)
	mustAppend(t, tl, msg(1, 7, base.Add(48*time.Hour)))
	mustAppend(t, tl, msg(2, 7, base)) // arrives later, belongs two days earlier

	if !slices.Equal(tl.Order(), []int64{1, 2}) {
		t.Errorf("Order = %v, want arrival order [1 2]", tl.Order())
	}
	past := tl.BucketsFor("2026-04-07")
	if len(past) != 1 || past[0].MessageIDs[0] != 2 {
		t.Errorf("expected message 2 in the past bucket, got %+v", past)
	}
}

func TestAppend_ChannelMismatch(t *testing.T) {
	tl := New(channelID)
	m := msg(1, 7, base)
	m.ChannelID = 999

	err := tl.Append(m)
	if !errors.Is(err, ErrChannelMismatch) {
		t.Fatalf("expected ErrChannelMismatch, got %v", err)
	}
	if tl.Len() != 0 || len(tl.Days()) != 0 {
		t.Error("rejected append must not change the timeline")
	}
}

func TestAppend_DuplicateRejected(t *testing.T) {
	tl := New(channelID)
	mustAppend(t, tl, msg(1, 7, base))

	err := tl.Append(msg(1, 7, base.Add(time.Second)))
	if !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("expected ErrDuplicateMessage, got %v", err)
	}
	if tl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tl.Len())
	}
}

func TestOrder_LengthMatchesSuccessfulAppends(t *testing.T) {
	tl := New(channelID)
	ok := 0
	for i := int64(1); i <= 30; i++ {
		id := i
		if i%4 == 0 {
			id = i - 1 // duplicate of the previous id
		}
		if err := tl.Append(msg(id, i%3, base.Add(time.Duration(i)*time.Minute))); err == nil {
			ok++
		}
	}

	order := tl.Order()
	if len(order) != ok {
		t.Fatalf("len(Order) = %d, successful appends = %d", len(order), ok)
	}
	seen := map[int64]bool{}
	for _, id := range order {
		if seen[id] {
			t.Fatalf("id %d appears twice in Order", id)
		}
		seen[id] = true
	}
}

func TestBucketsFor_UnknownDayIsEmpty(t *testing.T) {
	tl := New(channelID)
	groups := tl.BucketsFor("1999-01-01")
	if groups == nil || len(groups) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", groups)
	}
}

func TestBucketsFor_ReturnsCopies(t *testing.T) {
	tl := New(channelID)
	mustAppend(t, tl, msg(1, 7, base))

	groups := tl.BucketsFor("2026-04-07")
	groups[0].MessageIDs[0] = 42

	again := tl.BucketsFor("2026-04-07")
	if again[0].MessageIDs[0] != 1 {
		t.Error("mutating a returned group changed the timeline")
	}
}

func TestSetActiveBucket(t *testing.T) {
	tl := New(channelID)
	if err := tl.SetActiveBucket("2026-04-09"); err != nil {
		t.Fatalf("SetActiveBucket: %v", err)
	}
	if tl.Active() != "2026-04-09" {
		t.Errorf("Active = %q", tl.Active())
	}

	for _, bad := range []string{"", "monday", "2026-13-01", "07/04/2026"} {
		if err := tl.SetActiveBucket(bad); !errors.Is(err, ErrInvalidDayKey) {
			t.Errorf("SetActiveBucket(%q) = %v, want ErrInvalidDayKey", bad, err)
		}
	}
	if tl.Active() != "2026-04-09" {
		t.Error("rejected key must not change the active bucket")
	}
}

func TestPage(t *testing.T) {
	tl := New(channelID)
	for i := int64(1); i <= 5; i++ {
		mustAppend(t, tl, msg(i, 7, base.Add(time.Duration(i)*time.Second)))
	}

	ids := func(ms []models.Message) []int64 {
		var out []int64
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	if got := ids(tl.Page(0, 2)); !slices.Equal(got, []int64{4, 5}) {
		t.Errorf("Page(0,2) = %v, want [4 5]", got)
	}
	if got := ids(tl.Page(4, 2)); !slices.Equal(got, []int64{2, 3}) {
		t.Errorf("Page(4,2) = %v, want [2 3]", got)
	}
	if got := ids(tl.Page(2, 10)); !slices.Equal(got, []int64{1}) {
		t.Errorf("Page(2,10) = %v, want [1]", got)
	}
	if got := tl.Page(999, 10); len(got) != 0 {
		t.Errorf("Page(unknown) = %v, want empty", got)
	}
	if got := tl.Page(0, 0); len(got) != 0 {
		t.Errorf("Page(0,0) = %v, want empty", got)
	}
}

func TestLastAndMaxID(t *testing.T) {
	tl := New(channelID)
	if tl.LastID() != 0 || tl.MaxID() != 0 {
		t.Fatal("empty timeline should report zero ids")
	}
	mustAppend(t, tl, msg(9, 7, base))
	mustAppend(t, tl, msg(3, 7, base))
	if tl.LastID() != 3 {
		t.Errorf("LastID = %d, want 3", tl.LastID())
	}
	if tl.MaxID() != 9 {
		t.Errorf("MaxID = %d, want 9", tl.MaxID())
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2026, 12, 31, 23, 30, 0, 0, time.UTC)
	if got := DayKey(ts, time.UTC); got != "2026-12-31" {
		t.Errorf("DayKey = %q", got)
	}
	plus1 := time.FixedZone("+01", 60*60)
	if got := DayKey(ts, plus1); got != "2027-01-01" {
		t.Errorf("DayKey in +01 = %q", got)
	}
}
