package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// PutSystem inserts or replaces a system row.
func (s *Store) PutSystem(ctx context.Context, system storage.System) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if system.Created.IsZero() {
		system.Created = s.clock()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO systems (id, hid, name, created) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET hid = EXCLUDED.hid, name = EXCLUDED.name
	`, int64(system.ID), system.Hid, optionalText(system.Name), system.Created.UTC())
	return classify("put system", err)
}

// PutMember inserts or replaces a member row.
func (s *Store) PutMember(ctx context.Context, member storage.Member) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if member.Created.IsZero() {
		member.Created = s.clock()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO members (id, hid, system, name, display_name, description, description_privacy, member_visibility, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			hid = EXCLUDED.hid,
			system = EXCLUDED.system,
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			description_privacy = EXCLUDED.description_privacy,
			member_visibility = EXCLUDED.member_visibility
	`,
		int64(member.ID), member.Hid, int64(member.System), member.Name,
		optionalText(member.DisplayName), optionalText(member.Description),
		privacyOrDefault(member.DescriptionPrivacy), privacyOrDefault(member.Visibility),
		member.Created.UTC(),
	)
	return classify("put member", err)
}

// PutGroup inserts or replaces a group row.
func (s *Store) PutGroup(ctx context.Context, group storage.Group) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if group.Created.IsZero() {
		group.Created = s.clock()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_groups (id, hid, system, name, display_name, description, description_privacy, visibility, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			hid = EXCLUDED.hid,
			system = EXCLUDED.system,
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			description_privacy = EXCLUDED.description_privacy,
			visibility = EXCLUDED.visibility
	`,
		int64(group.ID), group.Hid, int64(group.System), group.Name,
		optionalText(group.DisplayName), optionalText(group.Description),
		privacyOrDefault(group.DescriptionPrivacy), privacyOrDefault(group.Visibility),
		group.Created.UTC(),
	)
	return classify("put group", err)
}

// AddGroupMembers adds members to a group, skipping ones already present.
func (s *Store) AddGroupMembers(ctx context.Context, group storage.GroupID, members []storage.MemberID) (int, error) {
	return s.changeGroupMembers(ctx, "add group members", `
		INSERT INTO group_members (group_id, member_id)
		SELECT $1, m FROM unnest($2::bigint[]) AS m
		ON CONFLICT DO NOTHING
	`, group, members)
}

// RemoveGroupMembers removes members from a group.
func (s *Store) RemoveGroupMembers(ctx context.Context, group storage.GroupID, members []storage.MemberID) (int, error) {
	return s.changeGroupMembers(ctx, "remove group members", `
		DELETE FROM group_members WHERE group_id = $1 AND member_id = ANY($2::bigint[])
	`, group, members)
}

func (s *Store) changeGroupMembers(ctx context.Context, what, stmt string, group storage.GroupID, members []storage.MemberID) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		ids = append(ids, int64(member))
	}
	var changed int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, int64(group), ids)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, classify(what, err)
	}
	s.logger.Debug().Int64("group", int64(group)).Int64("changed", changed).Msg(what)
	return int(changed), nil
}
