package bootstrap

import (
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/permissions"
)

// PreferenceLookup returns a user's stored preference for a channel; ok is
// false when none was ever stored.
type PreferenceLookup interface {
	ChannelPreference(userID, channelID int64) (pref models.Preference, ok bool)
}

// PreferenceFunc adapts a function to PreferenceLookup.
type PreferenceFunc func(userID, channelID int64) (models.Preference, bool)

func (f PreferenceFunc) ChannelPreference(userID, channelID int64) (models.Preference, bool) {
	return f(userID, channelID)
}

// NoPreferences is a lookup for users with no stored preferences.
var NoPreferences = PreferenceFunc(func(int64, int64) (models.Preference, bool) {
	return models.Preference{}, false
})

// Resolver decides which channels a user's session loads.
type Resolver struct {
	prefs PreferenceLookup
}

// NewResolver creates a Resolver reading preferences from prefs. A nil
// lookup behaves like NoPreferences.
func NewResolver(prefs PreferenceLookup) *Resolver {
	if prefs == nil {
		prefs = NoPreferences
	}
	return &Resolver{prefs: prefs}
}

// Resolve returns the channels in catalog that userID may see, in catalog
// order. It does not modify catalog or any store.
func (r *Resolver) Resolve(userID int64, catalog []models.Channel) []models.Channel {
	visible := make([]models.Channel, 0, len(catalog))
	for i := range catalog {
		if r.Visible(userID, &catalog[i]) {
			visible = append(visible, catalog[i].Clone())
		}
	}
	return visible
}

// Visible reports whether a single channel passes the visibility rules.
func (r *Resolver) Visible(userID int64, ch *models.Channel) bool {
	pref, ok := r.prefs.ChannelPreference(userID, ch.ID)
	return permissions.CanView(userID, ch, pref, ok)
}

// Permissions returns everything userID may do with ch. Unlike Visible it
// ignores the sidebar preference: a hidden private channel stays readable.
func (r *Resolver) Permissions(userID int64, ch *models.Channel) permissions.Permission {
	return permissions.ComputeChannelPermissions(userID, ch)
}
