package domain

import (
	"context"
	"iter"
	"time"

	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// EntityKind selects which list QueryEntities reads.
type EntityKind string

const (
	EntityMember EntityKind = "member"
	EntityGroup  EntityKind = "group"
)

// ListedEntity is a member or group row in a shape shared by both lists.
type ListedEntity struct {
	Kind        EntityKind
	ID          int64
	Hid         string
	System      storage.SystemID
	Name        string
	DisplayName string
	// Description is the text the caller may see.
	Description string
	Visibility  storage.PrivacyLevel
	Created     time.Time
	// MemberCount is set for groups only.
	MemberCount int
}

// QueryEntities lists members or groups of a system under opts.
func (s *Service) QueryEntities(ctx context.Context, kind EntityKind, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[ListedEntity, error], error) {
	switch kind {
	case EntityMember:
		seq, err := s.QueryMembers(ctx, system, opts)
		if err != nil {
			return nil, err
		}
		return mapSeq(seq, memberEntity), nil
	case EntityGroup:
		seq, err := s.QueryGroups(ctx, system, opts)
		if err != nil {
			return nil, err
		}
		return mapSeq(seq, groupEntity), nil
	default:
		return nil, ErrUnknownEntityKind
	}
}

func mapSeq[T, U any](seq iter.Seq2[T, error], fn func(T) U) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		for value, err := range seq {
			if err != nil {
				var zero U
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(fn(value), nil) {
				return
			}
		}
	}
}

func memberEntity(m storage.ListedMember) ListedEntity {
	return ListedEntity{
		Kind:        EntityMember,
		ID:          int64(m.ID),
		Hid:         m.Hid,
		System:      m.System,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Visibility:  m.Visibility,
		Created:     m.Created,
	}
}

func groupEntity(g storage.ListedGroup) ListedEntity {
	return ListedEntity{
		Kind:        EntityGroup,
		ID:          int64(g.ID),
		Hid:         g.Hid,
		System:      g.System,
		Name:        g.Name,
		DisplayName: g.DisplayName,
		Description: g.Description,
		Visibility:  g.Visibility,
		Created:     g.Created,
		MemberCount: g.MemberCount,
	}
}
