package models

import "maps"

// Status is a user's presence. The set is open; these are the values the
// server is known to send.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAway      Status = "away"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

// Preference holds a user's UI settings for one channel.
type Preference struct {
	Sidebar bool `json:"sidebar"`
}

type User struct {
	ID          int64                `json:"id,string"`
	Username    string               `json:"username"`
	FirstName   string               `json:"first_name,omitempty"`
	LastName    string               `json:"last_name,omitempty"`
	DisplayName string               `json:"display_name"`
	Status      Status               `json:"status"`
	Preferences map[int64]Preference `json:"preferences,omitempty"`
}

// Preference returns the stored preference for channelID, if any.
func (u *User) Preference(channelID int64) (Preference, bool) {
	p, ok := u.Preferences[channelID]
	return p, ok
}

// Clone returns a deep copy safe to hand to callers outside the store.
func (u User) Clone() User {
	out := u
	out.Preferences = maps.Clone(u.Preferences)
	return out
}
