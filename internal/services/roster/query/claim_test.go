package query

import (
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/roster/internal/services/roster/storage"
)

func TestClaimCondition(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		scope   storage.ClaimScope
		opts    storage.ClaimOptions
		want    string
		args    []any
	}{
		{
			name:    "member unseen",
			dialect: SQLite,
			scope:   storage.MemberScope(2, 5),
			want:    "member = ?1 AND system = ?2 AND seen = FALSE",
			args:    []any{int64(5), int64(2)},
		},
		{
			name:    "member including seen",
			dialect: Postgres,
			scope:   storage.MemberScope(2, 5),
			opts:    storage.ClaimOptions{IncludeSeen: true, IncludeSystemWide: true},
			want:    "member = $1 AND system = $2",
			args:    []any{int64(5), int64(2)},
		},
		{
			name:    "system only",
			dialect: SQLite,
			scope:   storage.SystemScope(2),
			want:    "system = ?1 AND member IS NULL AND seen = FALSE",
			args:    []any{int64(2)},
		},
		{
			name:    "system wide",
			dialect: Postgres,
			scope:   storage.SystemScope(2),
			opts:    storage.ClaimOptions{IncludeSystemWide: true},
			want:    "system = $1 AND seen = FALSE",
			args:    []any{int64(2)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := ClaimCondition(tc.dialect, tc.scope, tc.opts)
			if err != nil {
				t.Fatalf("claim condition: %v", err)
			}
			if stmt.SQL != tc.want {
				t.Fatalf("condition = %q, want %q", stmt.SQL, tc.want)
			}
			if !reflect.DeepEqual(stmt.Args, tc.args) {
				t.Fatalf("args = %#v", stmt.Args)
			}
		})
	}
}

func TestClaimConditionRejectsUnspecifiedScope(t *testing.T) {
	if _, err := ClaimCondition(SQLite, storage.ClaimScope{ID: 1}, storage.ClaimOptions{}); err == nil {
		t.Fatal("expected error for unspecified scope")
	}
	if _, err := ClaimCondition(SQLite, storage.ClaimScope{Kind: storage.ReceiverMember, ID: 1}, storage.ClaimOptions{}); err == nil {
		t.Fatal("expected error for member scope without a system")
	}
}

func TestPostgresClaim(t *testing.T) {
	stmt, err := PostgresClaim(storage.MemberScope(2, 5), storage.ClaimOptions{})
	if err != nil {
		t.Fatalf("postgres claim: %v", err)
	}
	want := "WITH picked AS (" +
		"SELECT mid, channel, guild, member, system, seen, timestamp FROM reminders " +
		"WHERE member = $1 AND system = $2 AND seen = FALSE FOR UPDATE" +
		"), flipped AS (" +
		"UPDATE reminders r SET seen = TRUE FROM picked WHERE r.mid = picked.mid " +
		"RETURNING picked.mid, picked.channel, picked.guild, picked.member, picked.system, picked.seen, picked.timestamp" +
		") SELECT mid, channel, guild, member, system, seen, timestamp FROM flipped " +
		"ORDER BY timestamp DESC, mid DESC"
	if stmt.SQL != want {
		t.Fatalf("sql =\n%s\nwant\n%s", stmt.SQL, want)
	}
	if !reflect.DeepEqual(stmt.Args, []any{int64(5), int64(2)}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
	if strings.Count(stmt.SQL, "$") != 2 {
		t.Fatalf("expected only bound placeholders, got %s", stmt.SQL)
	}
}

func TestPostgresClaimRejectsInvalidScope(t *testing.T) {
	if _, err := PostgresClaim(storage.ClaimScope{}, storage.ClaimOptions{}); err == nil {
		t.Fatal("expected error for unspecified scope")
	}
}
