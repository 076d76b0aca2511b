package api

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/models"
	redisclient "github.com/victorivanov/retrostate/internal/redis"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testUserID  int64 = 1
	testOtherID int64 = 2
	testThirdID int64 = 3

	chPublic    int64 = 10 // public, owner 2, members 1 2
	chProtected int64 = 20 // protected, owner 1
	chPrivate   int64 = 40 // private, owner 3, members 3 1
	chHidden    int64 = 60 // private, owner 2, members 2 3
	chLobby     int64 = 70 // public, owner 2
	chDirect    int64 = 80 // direct between 1 and 2
)

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func setAuthUser(c echo.Context, userID int64) {
	c.Set("user_id", userID)
}

func newTestRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := redisclient.NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("creating test redis client: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func sid(v int64) *snowflake.ID {
	id := snowflake.ID(v)
	return &id
}

func members(vs ...int64) []snowflake.ID {
	out := make([]snowflake.ID, len(vs))
	for i, v := range vs {
		out[i] = snowflake.ID(v)
	}
	return out
}

// newTestSession returns a session for testUserID holding three users, the
// sample channels and two messages in chPublic.
func newTestSession(t *testing.T) *store.Session {
	t.Helper()
	sess := store.NewSession(testUserID)
	t.Cleanup(sess.Close)

	for _, u := range []store.RawUser{
		{ID: 1, Username: "user1", DisplayName: "User One"},
		{ID: 2, Username: "user2", DisplayName: "User Two"},
		{ID: 3, Username: "user3", DisplayName: "User Three"},
	} {
		if _, err := sess.Users.IngestUser(u); err != nil {
			t.Fatalf("ingesting user %d: %v", u.ID, err)
		}
	}
	for _, ch := range []store.RawChannel{
		{ID: 10, Name: "general", Access: "public", OwnerID: sid(2), Members: members(1, 2)},
		{ID: 20, Name: "notes", Access: "protected", OwnerID: sid(1), Members: members(1)},
		{ID: 40, Name: "team", Access: "private", OwnerID: sid(3), Members: members(3, 1)},
		{ID: 60, Name: "secret", Access: "private", OwnerID: sid(2), Members: members(2, 3)},
		{ID: 70, Name: "lobby", Access: "public", OwnerID: sid(2), Members: members(2)},
		{ID: 80, Access: "private", Members: members(1, 2)},
	} {
		if _, err := sess.Channels.IngestChannel(ch); err != nil {
			t.Fatalf("ingesting channel %d: %v", ch.ID, err)
		}
	}

	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC).UnixMilli()
	for _, m := range []store.RawMessage{
		{ID: 1001, ChannelID: 10, AuthorID: 2, Timestamp: &ts, Content: "hello"},
		{ID: 1002, ChannelID: 10, AuthorID: 2, Timestamp: &ts, Content: "again"},
	} {
		if _, err := sess.Channels.IngestMessage(chPublic, m); err != nil {
			t.Fatalf("ingesting message %d: %v", m.ID, err)
		}
	}
	return sess
}

// newTestServer wires the full router around sess.
func newTestServer(t *testing.T, sess *store.Session, journal Journal, limiter RateLimiter) *echo.Echo {
	t.Helper()
	e := echo.New()
	SetupRouter(e, &Dependencies{
		Session:  sess,
		Channels: NewChannelHandler(sess, journal),
		Users:    NewUserHandler(sess.Users, journal, nil),
		Limiter:  limiter,
	})
	return e
}

func serve(e *echo.Echo, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type membershipCall struct {
	ChannelID int64
	UserID    int64
	Joined    bool
}

// mockJournal implements Journal and records what was saved.
type mockJournal struct {
	SaveMessageFn    func(ctx context.Context, msg *models.Message) error
	SaveMembershipFn func(ctx context.Context, channelID, userID int64, joined bool, at time.Time) error
	SavePreferenceFn func(ctx context.Context, userID, channelID int64, pref models.Preference) error

	mu          sync.Mutex
	messages    []models.Message
	memberships []membershipCall
	preferences []models.Preference
}

func (m *mockJournal) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, *msg)
	m.mu.Unlock()
	if m.SaveMessageFn != nil {
		return m.SaveMessageFn(ctx, msg)
	}
	return nil
}

func (m *mockJournal) SaveMembership(ctx context.Context, channelID, userID int64, joined bool, at time.Time) error {
	m.mu.Lock()
	m.memberships = append(m.memberships, membershipCall{channelID, userID, joined})
	m.mu.Unlock()
	if m.SaveMembershipFn != nil {
		return m.SaveMembershipFn(ctx, channelID, userID, joined, at)
	}
	return nil
}

func (m *mockJournal) SavePreference(ctx context.Context, userID, channelID int64, pref models.Preference) error {
	m.mu.Lock()
	m.preferences = append(m.preferences, pref)
	m.mu.Unlock()
	if m.SavePreferenceFn != nil {
		return m.SavePreferenceFn(ctx, userID, channelID, pref)
	}
	return nil
}
