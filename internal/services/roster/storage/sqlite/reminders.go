package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/roster/internal/services/roster/query"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// AddReminder inserts one reminder. A zero timestamp is stamped with the
// store clock. A member-targeted reminder is only stored when the member
// belongs to the reminder's system.
func (s *Store) AddReminder(ctx context.Context, reminder storage.Reminder) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := reminder.Validate(); err != nil {
		return err
	}
	if reminder.Timestamp.IsZero() {
		reminder.Timestamp = s.clock()
	}

	var member sql.NullInt64
	if reminder.Member != nil {
		member = sql.NullInt64{Int64: int64(*reminder.Member), Valid: true}
	}
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reminders (mid, channel, guild, member, system, seen, timestamp)
SELECT ?1, ?2, ?3, ?4, ?5, ?6, ?7
WHERE ?4 IS NULL OR EXISTS (SELECT 1 FROM members WHERE id = ?4 AND system = ?5)`,
		int64(reminder.Mid),
		int64(reminder.Channel),
		int64(reminder.Guild),
		member,
		int64(reminder.System),
		reminder.Seen,
		toMillis(reminder.Timestamp),
	)
	if err != nil {
		return classify("add reminder", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return classify("add reminder", err)
	} else if n == 0 {
		return storage.ErrMemberNotInSystem
	}

	event := s.logger.Debug().
		Uint64("mid", reminder.Mid).
		Int64("system", int64(reminder.System))
	if reminder.Member != nil {
		event = event.Int64("member", int64(*reminder.Member))
	}
	event.Msg("added reminder")
	return nil
}

// ClaimPending marks the reminders in scope as seen and returns them as they
// were before the update, newest first.
//
// The read and the update share one IMMEDIATE transaction, so no other
// writer can claim or insert between them.
func (s *Store) ClaimPending(ctx context.Context, scope storage.ClaimScope, opts storage.ClaimOptions) ([]storage.Reminder, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	cond, err := query.ClaimCondition(query.SQLite, scope, opts)
	if err != nil {
		return nil, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin claim", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		"SELECT "+query.ReminderColumns+" FROM reminders WHERE "+cond.SQL+" ORDER BY "+query.ReminderOrder,
		cond.Args...,
	)
	if err != nil {
		return nil, classify("select claimable reminders", err)
	}
	claimed := []storage.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows.Scan)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		claimed = append(claimed, reminder)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, classify("iterate claimable reminders", err)
	}
	if err := rows.Close(); err != nil {
		return nil, classify("close claimable reminders", err)
	}

	if len(claimed) > 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE reminders SET seen = TRUE WHERE "+cond.SQL, cond.Args...); err != nil {
			return nil, classify("mark reminders seen", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit claim", err)
	}
	committed = true

	s.logger.Debug().
		Str("scope", scope.Kind.String()).
		Int64("receiver", scope.ID).
		Int("count", len(claimed)).
		Msg("claimed reminders")
	return claimed, nil
}

func scanReminder(scan scanner) (storage.Reminder, error) {
	var (
		mid, channel, guild, system, timestamp int64
		member                                 sql.NullInt64
		seen                                   bool
	)
	if err := scan(&mid, &channel, &guild, &member, &system, &seen, &timestamp); err != nil {
		return storage.Reminder{}, fmt.Errorf("scan reminder: %w", err)
	}
	reminder := storage.Reminder{
		Mid:       uint64(mid),
		Channel:   uint64(channel),
		Guild:     uint64(guild),
		System:    storage.SystemID(system),
		Seen:      seen,
		Timestamp: fromMillis(timestamp),
	}
	if member.Valid {
		id := storage.MemberID(member.Int64)
		reminder.Member = &id
	}
	return reminder, nil
}
