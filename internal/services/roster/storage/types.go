package storage

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
)

// SystemID identifies a system, the collective that owns members, groups
// and reminders.
type SystemID int64

// MemberID identifies one member of a system.
type MemberID int64

// GroupID identifies one group of a system.
type GroupID int64

// Reminder is a pending or delivered notification about a message.
type Reminder struct {
	// Mid is the unique id of the message being pointed at.
	Mid     uint64
	Channel uint64
	Guild   uint64
	// Member is set when the reminder targets one member rather than the
	// whole system.
	Member    *MemberID
	System    SystemID
	Seen      bool
	Timestamp time.Time
}

// MaxMessageID is the largest message id a store keeps in order. Ids are
// stored as signed 64-bit integers.
const MaxMessageID uint64 = math.MaxInt64

var (
	// ErrMessageIDRange indicates a message id above MaxMessageID.
	ErrMessageIDRange = apperrors.New(apperrors.CodeInvalidArgument, "reminder message id is out of range")
	// ErrMemberNotInSystem indicates a reminder targeting a member of
	// another system, or an unknown member.
	ErrMemberNotInSystem = apperrors.New(apperrors.CodeInvalidArgument, "reminder member does not belong to the system")
)

// Validate rejects reminders a store cannot keep in order.
func (r Reminder) Validate() error {
	if r.Mid > MaxMessageID {
		return ErrMessageIDRange
	}
	return nil
}

// ReceiverKind selects which column a claim scope matches.
type ReceiverKind uint8

const (
	ReceiverUnspecified ReceiverKind = iota
	ReceiverMember
	ReceiverSystem
)

func (k ReceiverKind) String() string {
	switch k {
	case ReceiverMember:
		return "member"
	case ReceiverSystem:
		return "system"
	default:
		return "unspecified"
	}
}

// ClaimScope names the receiver whose reminders are claimed. System is the
// system the receiver belongs to; member scopes only match reminders of that
// system.
type ClaimScope struct {
	Kind   ReceiverKind
	ID     int64
	System SystemID
}

// MemberScope claims reminders targeted at one member of system.
func MemberScope(system SystemID, id MemberID) ClaimScope {
	return ClaimScope{Kind: ReceiverMember, ID: int64(id), System: system}
}

// SystemScope claims reminders addressed to a whole system.
func SystemScope(id SystemID) ClaimScope {
	return ClaimScope{Kind: ReceiverSystem, ID: int64(id), System: id}
}

// Validate rejects scopes that do not name a receiver and its system.
func (s ClaimScope) Validate() error {
	switch s.Kind {
	case ReceiverMember, ReceiverSystem:
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid claim scope kind %d", s.Kind))
	}
	if s.System <= 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%s claim scope has no system", s.Kind))
	}
	if s.Kind == ReceiverSystem && s.ID != int64(s.System) {
		return apperrors.New(apperrors.CodeInvalidArgument, "system claim scope names two systems")
	}
	return nil
}

// ClaimOptions widens what a claim matches.
type ClaimOptions struct {
	// IncludeSeen also returns reminders that were already claimed.
	IncludeSeen bool
	// IncludeSystemWide makes a system scope also match reminders targeted
	// at individual members of the system. Ignored for member scopes.
	IncludeSystemWide bool
}

// PrivacyLevel is the visibility of an entity or one of its fields.
type PrivacyLevel uint8

const (
	PrivacyPublic  PrivacyLevel = 1
	PrivacyPrivate PrivacyLevel = 2
)

func (p PrivacyLevel) String() string {
	switch p {
	case PrivacyPublic:
		return "public"
	case PrivacyPrivate:
		return "private"
	default:
		return fmt.Sprintf("PrivacyLevel(%d)", uint8(p))
	}
}

// Valid reports whether p is a known level.
func (p PrivacyLevel) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

// ParsePrivacyLevel reads "public" or "private".
func ParsePrivacyLevel(value string) (PrivacyLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "public", "pub", "show":
		return PrivacyPublic, nil
	case "private", "priv", "hide":
		return PrivacyPrivate, nil
	default:
		return 0, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown privacy level %q", value))
	}
}

// LookupContext says who is looking. The zero value is the outside viewer.
type LookupContext uint8

const (
	LookupByNonOwner LookupContext = iota
	LookupByOwner
)

func (c LookupContext) String() string {
	if c == LookupByOwner {
		return "owner"
	}
	return "non-owner"
}

// LookupFor returns LookupByOwner only when caller owns target.
func LookupFor(caller, target SystemID) LookupContext {
	if caller != 0 && caller == target {
		return LookupByOwner
	}
	return LookupByNonOwner
}

// ListQueryOptions narrows a member or group list.
type ListQueryOptions struct {
	// GroupFilter scopes a member list to one group instead of the system.
	GroupFilter *GroupID
	// PrivacyFilter keeps only entities with this visibility.
	PrivacyFilter *PrivacyLevel
	// Search is a case-insensitive substring matched against names. Empty
	// means no search.
	Search string
	// SearchDescription also matches Search against the description visible
	// to the caller.
	SearchDescription bool
	Context           LookupContext
	// Filter is an optional AIP-160 expression over hid, name,
	// display_name, privacy and created.
	Filter string
}

// System is the owner of members, groups and reminders.
type System struct {
	ID      SystemID
	Hid     string
	Name    string
	Created time.Time
}

// Member is one member of a system.
type Member struct {
	ID                 MemberID
	Hid                string
	System             SystemID
	Name               string
	DisplayName        string
	Description        string
	DescriptionPrivacy PrivacyLevel
	Visibility         PrivacyLevel
	Created            time.Time
}

// Group is a named set of members within a system.
type Group struct {
	ID                 GroupID
	Hid                string
	System             SystemID
	Name               string
	DisplayName        string
	Description        string
	DescriptionPrivacy PrivacyLevel
	Visibility         PrivacyLevel
	Created            time.Time
}

// ListedMember is one row of a member list. Description holds what the
// caller may see: the full text for the owner, the public text otherwise.
type ListedMember struct {
	ID                MemberID
	Hid               string
	System            SystemID
	Name              string
	DisplayName       string
	Description       string
	PublicDescription string
	Visibility        PrivacyLevel
	Created           time.Time
}

// ListedGroup is one row of a group list.
type ListedGroup struct {
	ID                GroupID
	Hid               string
	System            SystemID
	Name              string
	DisplayName       string
	Description       string
	PublicDescription string
	Visibility        PrivacyLevel
	MemberCount       int
	Created           time.Time
}
