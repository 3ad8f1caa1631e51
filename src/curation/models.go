package curation

import (
	"fmt"

	"github.com/stake-plus/govcurator/src/engine"
)

// Record kinds.
const (
	KindUser      = "User"
	KindChannel   = "Channel"
	KindGuild     = "Guild"
	KindMessage   = "Message"
	KindAlternate = "Alternate"
)

// Status is the curation state of a message. Values are persisted.
type Status int64

const (
	StatusVintage Status = iota
	StatusCurated
	StatusRequested
	StatusApproved
	StatusAnonymous
	StatusDenied
)

var statusNames = [...]string{"VINTAGE", "CURATED", "REQUESTED", "APPROVED", "ANONYMOUS", "DENIED"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int64(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s >= StatusApproved }

// Published reports whether the author agreed to be quoted.
func (s Status) Published() bool { return s == StatusApproved || s == StatusAnonymous }

// AlternateType says what a derived platform message is for.
type AlternateType int64

const (
	AlternatePending AlternateType = iota
	AlternateRequest
	AlternateApproved
	AlternateCommentable
)

var alternateNames = [...]string{"PENDING", "REQUEST", "APPROVED", "COMMENTABLE"}

func (t AlternateType) String() string {
	if t >= 0 && int(t) < len(alternateNames) {
		return alternateNames[t]
	}
	return fmt.Sprintf("AlternateType(%d)", int64(t))
}

func enumValidator(name string, max int64) func(any) error {
	return func(v any) error {
		i, ok := v.(int64)
		if !ok {
			return fmt.Errorf("%s must be an integer, got %T", name, v)
		}
		if i < 0 || i > max {
			return fmt.Errorf("%s %d out of range", name, i)
		}
		return nil
	}
}

func falseDefault() any { return false }

// Schemas returns the record kinds the workflow persists.
func Schemas() []*engine.Schema {
	return []*engine.Schema{
		{
			Kind: KindUser,
			Fields: []engine.Field{
				{Name: "is_admin", Type: engine.TypeBool, Default: falseDefault},
				{Name: "have_met", Type: engine.TypeBool, Default: falseDefault},
			},
		},
		{
			Kind: KindChannel,
			Fields: []engine.Field{
				{Name: "group", Type: engine.TypeString, Required: true},
			},
		},
		{
			Kind: KindGuild,
			Fields: []engine.Field{
				{Name: "pending_channel_id", Type: engine.TypeInt, Required: true},
				{Name: "approved_channel_id", Type: engine.TypeInt, Required: true},
				{Name: "bridge_channel_id", Type: engine.TypeInt},
			},
		},
		{
			Kind: KindMessage,
			Fields: []engine.Field{
				{Name: "channel_id", Type: engine.TypeInt, Required: true},
				{Name: "message_id", Type: engine.TypeInt, Required: true, UniqueWith: []string{"channel_id"}},
				{Name: "status", Type: engine.TypeInt, Required: true, Validator: enumValidator("status", int64(StatusDenied))},
				{Name: "comments", Type: engine.TypeList},
				{Name: "metadata", Type: engine.TypeMap},
			},
		},
		{
			Kind: KindAlternate,
			Fields: []engine.Field{
				{Name: "alternate_channel_id", Type: engine.TypeInt, Required: true},
				{Name: "alternate_message_id", Type: engine.TypeInt, Required: true},
				{
					Name:       "type",
					Type:       engine.TypeInt,
					Required:   true,
					Validator:  enumValidator("type", int64(AlternateCommentable)),
					UniqueWith: []string{"alternate_channel_id", "alternate_message_id"},
				},
				{Name: "original_channel_id", Type: engine.TypeInt, Required: true},
				{Name: "original_message_id", Type: engine.TypeInt, Required: true},
			},
		},
	}
}

// Register adds the workflow kinds to reg.
func Register(reg *engine.Registry) error {
	return reg.Register(Schemas()...)
}
