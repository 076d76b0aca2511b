package permissions

import "github.com/victorivanov/retrostate/internal/models"

// CanView applies the bootstrap visibility rules to one channel:
//  1. public channels are always visible.
//  2. protected channels are visible to the owner and members.
//  3. private channels are visible to the owner and members, unless the user
//     turned the sidebar off for that channel.
//
// pref is the user's stored preference for the channel; set is false when
// the user never stored one.
func CanView(userID int64, ch *models.Channel, pref models.Preference, set bool) bool {
	switch ch.Access {
	case models.AccessPublic:
		return true
	case models.AccessProtected:
		return ch.HasAccess(userID)
	case models.AccessPrivate:
		if !ch.HasAccess(userID) {
			return false
		}
		return !(set && !pref.Sidebar)
	}
	return false
}

// CanAccess reports whether userID may read ch: anyone for public channels,
// the owner and members otherwise. The sidebar preference only decides what
// a bootstrap surfaces and plays no part here.
func CanAccess(userID int64, ch *models.Channel) bool {
	switch ch.Access {
	case models.AccessPublic:
		return true
	case models.AccessProtected, models.AccessPrivate:
		return ch.HasAccess(userID)
	}
	return false
}

// ComputeChannelPermissions returns what userID may do with ch.
//  1. VIEW_CHANNEL per CanAccess.
//  2. SEND_MESSAGES and LEAVE for members.
//  3. JOIN for non-members of public and protected channels.
//  4. TOGGLE_SIDEBAR for owners and members of private channels.
func ComputeChannelPermissions(userID int64, ch *models.Channel) Permission {
	perms := PermNone
	if CanAccess(userID, ch) {
		perms = perms.Add(PermViewChannel)
	}

	member := ch.IsMember(userID)
	if member {
		perms = perms.Add(PermSendMessages | PermLeave)
	} else if ch.Access == models.AccessPublic || ch.Access == models.AccessProtected {
		perms = perms.Add(PermJoin)
	}

	if ch.Access == models.AccessPrivate && ch.HasAccess(userID) {
		perms = perms.Add(PermToggleSidebar)
	}
	return perms
}
