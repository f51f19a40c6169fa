package sqlite

import (
	"context"
	"fmt"

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
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO systems (id, hid, name, created) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET hid = excluded.hid, name = excluded.name`,
		int64(system.ID), system.Hid, nullString(system.Name), toMillis(system.Created),
	)
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
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO members (id, hid, system, name, display_name, description, description_privacy, member_visibility, created)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    hid = excluded.hid,
    system = excluded.system,
    name = excluded.name,
    display_name = excluded.display_name,
    description = excluded.description,
    description_privacy = excluded.description_privacy,
    member_visibility = excluded.member_visibility`,
		int64(member.ID), member.Hid, int64(member.System), member.Name,
		nullString(member.DisplayName), nullString(member.Description),
		privacyOrDefault(member.DescriptionPrivacy), privacyOrDefault(member.Visibility),
		toMillis(member.Created),
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
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO system_groups (id, hid, system, name, display_name, description, description_privacy, visibility, created)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    hid = excluded.hid,
    system = excluded.system,
    name = excluded.name,
    display_name = excluded.display_name,
    description = excluded.description,
    description_privacy = excluded.description_privacy,
    visibility = excluded.visibility`,
		int64(group.ID), group.Hid, int64(group.System), group.Name,
		nullString(group.DisplayName), nullString(group.Description),
		privacyOrDefault(group.DescriptionPrivacy), privacyOrDefault(group.Visibility),
		toMillis(group.Created),
	)
	return classify("put group", err)
}

// AddGroupMembers adds members to a group, skipping ones already present.
func (s *Store) AddGroupMembers(ctx context.Context, group storage.GroupID, members []storage.MemberID) (int, error) {
	return s.changeGroupMembers(ctx, "add group members",
		"INSERT INTO group_members (group_id, member_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		group, members)
}

// RemoveGroupMembers removes members from a group.
func (s *Store) RemoveGroupMembers(ctx context.Context, group storage.GroupID, members []storage.MemberID) (int, error) {
	return s.changeGroupMembers(ctx, "remove group members",
		"DELETE FROM group_members WHERE group_id = ? AND member_id = ?",
		group, members)
}

func (s *Store) changeGroupMembers(ctx context.Context, what, stmt string, group storage.GroupID, members []storage.MemberID) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(what, err)
	}
	changed, err := execEach(ctx, tx, stmt, group, members)
	if err != nil {
		_ = tx.Rollback()
		return 0, classify(what, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(what, err)
	}
	s.logger.Debug().Int64("group", int64(group)).Int("changed", changed).Msg(what)
	return changed, nil
}

func execEach(ctx context.Context, exec sqlExecer, stmt string, group storage.GroupID, members []storage.MemberID) (int, error) {
	changed := 0
	for _, member := range members {
		result, err := exec.ExecContext(ctx, stmt, int64(group), int64(member))
		if err != nil {
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		changed += int(affected)
	}
	return changed, nil
}
