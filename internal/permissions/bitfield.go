package permissions

import "strings"

// Permission is a bitfield of what a user may do with one channel.
type Permission int64

const (
	PermViewChannel   Permission = 1 << 0
	PermSendMessages  Permission = 1 << 1
	PermJoin          Permission = 1 << 2
	PermLeave         Permission = 1 << 3
	PermToggleSidebar Permission = 1 << 4

	PermNone Permission = 0
)

// Has returns true if p contains all bits in perm.
func (p Permission) Has(perm Permission) bool { return p&perm == perm }

// Add returns p with the bits from perm set.
func (p Permission) Add(perm Permission) Permission { return p | perm }

// Remove returns p with the bits from perm cleared.
func (p Permission) Remove(perm Permission) Permission { return p &^ perm }

// permOrder lists bits in the order String prints them.
var permOrder = []struct {
	bit  Permission
	name string
}{
	{PermViewChannel, "VIEW_CHANNEL"},
	{PermSendMessages, "SEND_MESSAGES"},
	{PermJoin, "JOIN"},
	{PermLeave, "LEAVE"},
	{PermToggleSidebar, "TOGGLE_SIDEBAR"},
}

// String returns the set permission names separated by " | ".
func (p Permission) String() string {
	if p == PermNone {
		return "NONE"
	}

	var names []string
	for _, e := range permOrder {
		if p.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, " | ")
}

// Names returns the set permission names, for JSON responses.
func (p Permission) Names() []string {
	names := []string{}
	for _, e := range permOrder {
		if p.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return names
}
