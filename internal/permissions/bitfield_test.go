package permissions

import (
	"slices"
	"testing"
)

func TestHas(t *testing.T) {
	p := PermViewChannel | PermSendMessages
	if !p.Has(PermViewChannel) {
		t.Error("expected Has(PermViewChannel) to be true")
	}
	if !p.Has(PermViewChannel | PermSendMessages) {
		t.Error("expected Has(ViewChannel|SendMessages) to be true")
	}
	if p.Has(PermViewChannel | PermJoin) {
		t.Error("expected Has(ViewChannel|Join) to be false when Join is missing")
	}
}

func TestAddRemove(t *testing.T) {
	p := PermViewChannel.Add(PermLeave)
	if !p.Has(PermLeave) || !p.Has(PermViewChannel) {
		t.Errorf("Add lost bits: %s", p)
	}
	p = p.Remove(PermLeave)
	if p.Has(PermLeave) {
		t.Error("expected Leave to be removed")
	}
	if p.Remove(PermJoin) != p {
		t.Error("removing an absent bit should not change the set")
	}
	if p.Add(PermViewChannel) != p {
		t.Error("adding a present bit should be idempotent")
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		p    Permission
		want string
	}{
		{PermNone, "NONE"},
		{PermJoin, "JOIN"},
		{PermViewChannel | PermSendMessages, "VIEW_CHANNEL | SEND_MESSAGES"},
		{Permission(1 << 40), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestNames(t *testing.T) {
	if got := PermNone.Names(); got == nil || len(got) != 0 {
		t.Errorf("Names(NONE) = %#v, want empty non-nil", got)
	}
	got := (PermLeave | PermViewChannel).Names()
	if !slices.Equal(got, []string{"VIEW_CHANNEL", "LEAVE"}) {
		t.Errorf("Names = %v", got)
	}
}
