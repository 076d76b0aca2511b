package models

import "slices"

// AccessLevel controls who can see a channel.
type AccessLevel string

const (
	AccessPublic    AccessLevel = "public"
	AccessProtected AccessLevel = "protected"
	AccessPrivate   AccessLevel = "private"
)

// Valid reports whether a is one of the known access levels.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPublic, AccessProtected, AccessPrivate:
		return true
	}
	return false
}

// Channel is a named conversation scope. Members is kept in join order and
// never holds duplicates.
type Channel struct {
	ID      int64       `json:"id,string"`
	Name    string      `json:"name"`
	Access  AccessLevel `json:"access"`
	OwnerID *int64      `json:"owner_id,string,omitempty"`
	Members []int64     `json:"members"`
}

// IsDirect reports whether the channel is a two-party direct conversation:
// private and without an owner.
func (c *Channel) IsDirect() bool {
	return c.Access == AccessPrivate && c.OwnerID == nil
}

// IsOwner reports whether userID owns the channel.
func (c *Channel) IsOwner(userID int64) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// IsMember reports whether userID is in the member set.
func (c *Channel) IsMember(userID int64) bool {
	return slices.Contains(c.Members, userID)
}

// HasAccess reports whether userID owns or belongs to the channel.
func (c *Channel) HasAccess(userID int64) bool {
	return c.IsOwner(userID) || c.IsMember(userID)
}

// WithMember returns a copy of the member list with userID appended if it
// is not already present.
func (c *Channel) WithMember(userID int64) []int64 {
	if c.IsMember(userID) {
		return slices.Clone(c.Members)
	}
	return append(slices.Clone(c.Members), userID)
}

// WithoutMember returns a copy of the member list with userID removed.
func (c *Channel) WithoutMember(userID int64) []int64 {
	return slices.DeleteFunc(slices.Clone(c.Members), func(id int64) bool { return id == userID })
}

// Clone returns a deep copy safe to hand to callers outside the store.
func (c Channel) Clone() Channel {
	out := c
	if c.OwnerID != nil {
		owner := *c.OwnerID
		out.OwnerID = &owner
	}
	out.Members = slices.Clone(c.Members)
	return out
}
