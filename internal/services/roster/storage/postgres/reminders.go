package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
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

	var member *int64
	if reminder.Member != nil {
		id := int64(*reminder.Member)
		member = &id
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reminders (mid, channel, guild, member, system, seen, timestamp)
		SELECT $1::bigint, $2::bigint, $3::bigint, $4::bigint, $5::bigint, $6::boolean, $7::timestamptz
		WHERE $4::bigint IS NULL
		   OR EXISTS (SELECT 1 FROM members WHERE id = $4::bigint AND system = $5::bigint)
	`,
		int64(reminder.Mid),
		int64(reminder.Channel),
		int64(reminder.Guild),
		member,
		int64(reminder.System),
		reminder.Seen,
		reminder.Timestamp.UTC(),
	)
	if err != nil {
		return classify("add reminder", err)
	}
	if tag.RowsAffected() == 0 {
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
// One statement does both. A concurrent claim blocks on the row locks and
// then re-checks seen, so it skips rows taken here.
func (s *Store) ClaimPending(ctx context.Context, scope storage.ClaimScope, opts storage.ClaimOptions) ([]storage.Reminder, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	stmt, err := query.PostgresClaim(scope, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, classify("claim reminders", err)
	}
	defer rows.Close()

	claimed := []storage.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("claim reminders", err)
	}

	s.logger.Debug().
		Str("scope", scope.Kind.String()).
		Int64("receiver", scope.ID).
		Int("count", len(claimed)).
		Msg("claimed reminders")
	return claimed, nil
}

func scanReminder(row pgx.Row) (storage.Reminder, error) {
	var (
		mid, channel, guild, system int64
		member                      *int64
		seen                        bool
		timestamp                   time.Time
	)
	if err := row.Scan(&mid, &channel, &guild, &member, &system, &seen, &timestamp); err != nil {
		return storage.Reminder{}, fmt.Errorf("scan reminder: %w", err)
	}
	reminder := storage.Reminder{
		Mid:       uint64(mid),
		Channel:   uint64(channel),
		Guild:     uint64(guild),
		System:    storage.SystemID(system),
		Seen:      seen,
		Timestamp: timestamp.UTC(),
	}
	if member != nil {
		id := storage.MemberID(*member)
		reminder.Member = &id
	}
	return reminder, nil
}
