package bootstrap

import (
	"reflect"
	"testing"

	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/permissions"
)

const (
	user1 int64 = 1
	user2 int64 = 2
	user3 int64 = 3
)

func ptr(v int64) *int64 { return &v }

// catalog mirrors the sample layout: six channels of mixed access owned by
// different users.
func catalog() []models.Channel {
	return []models.Channel{
		{ID: 1, Name: "channel1", Access: models.AccessPublic, OwnerID: ptr(user2), Members: []int64{user1, user2}},
		{ID: 2, Name: "channel2", Access: models.AccessProtected, OwnerID: ptr(user1), Members: []int64{user1}},
		{ID: 3, Name: "channel3", Access: models.AccessProtected, OwnerID: ptr(user2), Members: []int64{user2, user1}},
		{ID: 4, Name: "channel4", Access: models.AccessPrivate, OwnerID: ptr(user3), Members: []int64{user3, user1}},
		{ID: 5, Name: "channel5", Access: models.AccessProtected, OwnerID: ptr(user3), Members: []int64{user3}},
		{ID: 6, Name: "channel6", Access: models.AccessPrivate, OwnerID: ptr(user2), Members: []int64{user2, user3}},
	}
}

func names(chs []models.Channel) []string {
	out := make([]string, 0, len(chs))
	for _, ch := range chs {
		out = append(out, ch.Name)
	}
	return out
}

type prefMap map[[2]int64]models.Preference

func (m prefMap) ChannelPreference(userID, channelID int64) (models.Preference, bool) {
	p, ok := m[[2]int64{userID, channelID}]
	return p, ok
}

func TestResolve_SampleLayout(t *testing.T) {
	r := NewResolver(nil)

	got := names(r.Resolve(user1, catalog()))
	want := []string{"channel1", "channel2", "channel3", "channel4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(user1) = %v, want %v", got, want)
	}
}

func TestResolve_OtherUser(t *testing.T) {
	r := NewResolver(nil)

	got := names(r.Resolve(user3, catalog()))
	want := []string{"channel1", "channel4", "channel5", "channel6"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(user3) = %v, want %v", got, want)
	}
}

func TestResolve_SidebarOffHidesPrivate(t *testing.T) {
	prefs := prefMap{{user1, 4}: {Sidebar: false}}
	r := NewResolver(prefs)

	got := names(r.Resolve(user1, catalog()))
	want := []string{"channel1", "channel2", "channel3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_SidebarOnKeepsPrivate(t *testing.T) {
	prefs := prefMap{{user1, 4}: {Sidebar: true}}
	r := NewResolver(prefs)

	got := names(r.Resolve(user1, catalog()))
	if len(got) != 4 || got[3] != "channel4" {
		t.Errorf("Resolve = %v, want channel4 kept", got)
	}
}

func TestResolve_SidebarOffIgnoredForProtected(t *testing.T) {
	prefs := prefMap{{user1, 3}: {Sidebar: false}}
	r := NewResolver(prefs)

	got := names(r.Resolve(user1, catalog()))
	if len(got) != 4 {
		t.Errorf("Resolve = %v, sidebar preference must only affect private channels", got)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	prefs := prefMap{{user3, 6}: {Sidebar: false}}
	r := NewResolver(prefs)
	cat := catalog()

	first := r.Resolve(user3, cat)
	second := r.Resolve(user3, cat)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve not idempotent:\n%v\n%v", first, second)
	}
}

func TestResolve_DoesNotAliasCatalog(t *testing.T) {
	r := NewResolver(nil)
	cat := catalog()

	out := r.Resolve(user1, cat)
	out[0].Members[0] = 999
	*out[1].OwnerID = 999

	if cat[0].Members[0] != user1 {
		t.Error("mutating the result changed the catalog members")
	}
	if *cat[1].OwnerID != user1 {
		t.Error("mutating the result changed the catalog owner")
	}
}

func TestResolve_EmptyCatalog(t *testing.T) {
	got := NewResolver(nil).Resolve(user1, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Resolve(nil) = %#v, want empty slice", got)
	}
}

func TestResolve_DirectChannel(t *testing.T) {
	dm := models.Channel{ID: 7, Name: "dm", Access: models.AccessPrivate, Members: []int64{user1, user2}}
	r := NewResolver(nil)

	if got := r.Resolve(user1, []models.Channel{dm}); len(got) != 1 {
		t.Error("participant should see the direct channel")
	}
	if got := r.Resolve(user3, []models.Channel{dm}); len(got) != 0 {
		t.Error("outsider should not see the direct channel")
	}
}

func TestPermissions(t *testing.T) {
	r := NewResolver(PreferenceFunc(func(u, c int64) (models.Preference, bool) {
		return models.Preference{}, false
	}))
	cat := catalog()

	perms := r.Permissions(user1, &cat[4]) // channel5: protected, not a member
	if perms != permissions.PermJoin {
		t.Errorf("perms = %s, want JOIN", perms)
	}
}

func TestPermissions_HiddenPrivateStaysReadable(t *testing.T) {
	r := NewResolver(PreferenceFunc(func(u, c int64) (models.Preference, bool) {
		return models.Preference{Sidebar: false}, true
	}))
	cat := catalog()

	if r.Visible(user1, &cat[3]) {
		t.Error("channel4 surfaced with its sidebar off")
	}
	want := permissions.PermViewChannel | permissions.PermSendMessages | permissions.PermLeave | permissions.PermToggleSidebar
	if perms := r.Permissions(user1, &cat[3]); perms != want {
		t.Errorf("perms = %s, want %s", perms, want)
	}
}
