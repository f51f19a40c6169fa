package query

import (
	"strings"

	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// ReminderColumns is the reminders projection in scan order.
const ReminderColumns = "mid, channel, guild, member, system, seen, timestamp"

// ReminderOrder sorts claimed reminders newest first.
const ReminderOrder = "timestamp DESC, mid DESC"

// ClaimCondition renders the condition selecting the reminders a claim
// takes. Member scopes match the member within its system. System scopes match
// system-wide reminders only, unless opts.IncludeSystemWide widens them to
// every reminder of the system.
func ClaimCondition(dialect Dialect, scope storage.ClaimScope, opts storage.ClaimOptions) (Statement, error) {
	if err := scope.Validate(); err != nil {
		return Statement{}, err
	}
	b := NewBuilder(dialect)
	switch scope.Kind {
	case storage.ReceiverMember:
		b.Where("member = " + b.Bind(scope.ID))
		b.Where("system = " + b.Bind(int64(scope.System)))
	case storage.ReceiverSystem:
		b.Where("system = " + b.Bind(scope.ID))
		if !opts.IncludeSystemWide {
			b.Where("member IS NULL")
		}
	}
	if !opts.IncludeSeen {
		b.Where("seen = FALSE")
	}
	return Statement{SQL: strings.Join(b.where, " AND "), Args: b.args}, nil
}

// PostgresClaim renders the single-statement PostgreSQL claim. The picked
// CTE row-locks the matching rows and keeps their values; flipped marks them
// seen and returns the kept values, so rows come back as they were before
// the update.
func PostgresClaim(scope storage.ClaimScope, opts storage.ClaimOptions) (Statement, error) {
	cond, err := ClaimCondition(Postgres, scope, opts)
	if err != nil {
		return Statement{}, err
	}
	sql := "WITH picked AS (" +
		"SELECT " + ReminderColumns + " FROM reminders WHERE " + cond.SQL + " FOR UPDATE" +
		"), flipped AS (" +
		"UPDATE reminders r SET seen = TRUE FROM picked WHERE r.mid = picked.mid " +
		"RETURNING picked.mid, picked.channel, picked.guild, picked.member, picked.system, picked.seen, picked.timestamp" +
		") SELECT " + ReminderColumns + " FROM flipped ORDER BY " + ReminderOrder
	return Statement{SQL: sql, Args: cond.Args}, nil
}
