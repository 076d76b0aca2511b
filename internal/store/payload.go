package store

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
)

// RawChannel is a channel record as supplied by a fetch source.
type RawChannel struct {
	ID      snowflake.ID   `json:"id" validate:"required"`
	Name    string         `json:"name"`
	Access  string         `json:"access" validate:"required"`
	OwnerID *snowflake.ID  `json:"owner_id,omitempty" validate:"omitempty,gt=0"`
	Members []snowflake.ID `json:"members" validate:"dive,required"`
}

// RawMessage is a message record as supplied by a fetch source. Timestamp is
// epoch milliseconds.
type RawMessage struct {
	ID        snowflake.ID `json:"id" validate:"required"`
	ChannelID snowflake.ID `json:"channel_id" validate:"required"`
	AuthorID  snowflake.ID `json:"author_id" validate:"required"`
	Timestamp *int64       `json:"timestamp" validate:"required"`
	Content   string       `json:"content"`
}

// RawUser is a user record as supplied by a fetch source.
type RawUser struct {
	ID          snowflake.ID                       `json:"id" validate:"required"`
	Username    string                             `json:"username"`
	FirstName   string                             `json:"first_name"`
	LastName    string                             `json:"last_name"`
	DisplayName string                             `json:"display_name"`
	Status      string                             `json:"status"`
	Preferences map[snowflake.ID]models.Preference `json:"preferences,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRequired runs struct validation and folds failures into one
// MalformedRecord error naming every offending field.
func checkRequired(kind string, rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return malformed("%s: %v", kind, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return malformed("%s: missing or invalid fields: %s", kind, strings.Join(fields, ", "))
}

// DecodeChannel parses a JSON channel record. Type mismatches are reported
// as MalformedRecord.
func DecodeChannel(data []byte) (RawChannel, error) {
	var raw RawChannel
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawChannel{}, malformed("channel: %v", err)
	}
	return raw, nil
}

// DecodeMessage parses a JSON message record.
func DecodeMessage(data []byte) (RawMessage, error) {
	var raw RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawMessage{}, malformed("message: %v", err)
	}
	return raw, nil
}

// DecodeUser parses a JSON user record.
func DecodeUser(data []byte) (RawUser, error) {
	var raw RawUser
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawUser{}, malformed("user: %v", err)
	}
	return raw, nil
}

// NormalizeChannel validates raw and converts it to a Channel. The owner is
// added to the member set when missing and duplicate members are dropped.
// Ownerless channels must be private with exactly two members.
func NormalizeChannel(raw RawChannel) (models.Channel, error) {
	if err := checkRequired("channel", raw); err != nil {
		return models.Channel{}, err
	}
	access := models.AccessLevel(strings.ToLower(raw.Access))
	if !access.Valid() {
		return models.Channel{}, newError(ErrInvalidAccessLevel, "INVALID_ACCESS_LEVEL",
			"access must be public, protected or private, got "+raw.Access, raw.ID.Int64())
	}

	ch := models.Channel{
		ID:      raw.ID.Int64(),
		Name:    raw.Name,
		Access:  access,
		Members: make([]int64, 0, len(raw.Members)+1),
	}
	if raw.OwnerID != nil {
		owner := raw.OwnerID.Int64()
		ch.OwnerID = &owner
		ch.Members = append(ch.Members, owner)
	}
	for _, m := range raw.Members {
		if !slices.Contains(ch.Members, m.Int64()) {
			ch.Members = append(ch.Members, m.Int64())
		}
	}

	if ch.OwnerID == nil {
		if access != models.AccessPrivate {
			return models.Channel{}, malformed("channel %d: only private direct channels may omit the owner", ch.ID)
		}
		if len(ch.Members) != 2 {
			return models.Channel{}, malformed("channel %d: direct channels need exactly 2 members, got %d", ch.ID, len(ch.Members))
		}
	}
	return ch, nil
}

// NormalizeMessage validates raw and converts it to a Message.
func NormalizeMessage(raw RawMessage) (models.Message, error) {
	if err := checkRequired("message", raw); err != nil {
		return models.Message{}, err
	}
	return models.Message{
		ID:        raw.ID.Int64(),
		ChannelID: raw.ChannelID.Int64(),
		AuthorID:  raw.AuthorID.Int64(),
		Content:   raw.Content,
		Timestamp: time.UnixMilli(*raw.Timestamp).UTC(),
	}, nil
}

// NormalizeUser validates raw and converts it to a User.
func NormalizeUser(raw RawUser) (models.User, error) {
	if err := checkRequired("user", raw); err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:          raw.ID.Int64(),
		Username:    raw.Username,
		FirstName:   raw.FirstName,
		LastName:    raw.LastName,
		DisplayName: raw.DisplayName,
		Status:      models.Status(raw.Status),
	}
	if u.Status == "" {
		u.Status = models.StatusOffline
	}
	if len(raw.Preferences) > 0 {
		u.Preferences = make(map[int64]models.Preference, len(raw.Preferences))
		for ch, p := range raw.Preferences {
			u.Preferences[ch.Int64()] = p
		}
	}
	return u, nil
}

// RawFromChannel converts a Channel back into its raw form.
func RawFromChannel(ch models.Channel) RawChannel {
	raw := RawChannel{
		ID:      snowflake.ID(ch.ID),
		Name:    ch.Name,
		Access:  string(ch.Access),
		Members: make([]snowflake.ID, len(ch.Members)),
	}
	if ch.OwnerID != nil {
		owner := snowflake.ID(*ch.OwnerID)
		raw.OwnerID = &owner
	}
	for i, m := range ch.Members {
		raw.Members[i] = snowflake.ID(m)
	}
	return raw
}
