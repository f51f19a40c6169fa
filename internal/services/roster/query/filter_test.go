package query

import (
	"reflect"
	"testing"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
)

func TestTranslateFilterEmpty(t *testing.T) {
	b := NewBuilder(SQLite)
	condition, err := TranslateFilter(b, "   ")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if condition != "" {
		t.Fatalf("condition = %q, want empty", condition)
	}
}

func TestTranslateFilterComparisons(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter string
		want   string
		args   []any
	}{
		{
			name:   "string equality",
			filter: `name = "Alice"`,
			want:   "name = ?1",
			args:   []any{"Alice"},
		},
		{
			name:   "and",
			filter: `hid = "abcde" AND privacy = 2`,
			want:   "(hid = ?1 AND visibility = ?2)",
			args:   []any{"abcde", int64(2)},
		},
		{
			name:   "or",
			filter: `display_name != "x" OR privacy = 1`,
			want:   "(display_name != ?1 OR visibility = ?2)",
			args:   []any{"x", int64(1)},
		},
		{
			name:   "timestamp",
			filter: `created >= timestamp("2024-03-01T12:00:00Z")`,
			want:   "created >= ?1",
			args:   []any{created.UnixMilli()},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(SQLite)
			got, err := TranslateFilter(b, tc.filter)
			if err != nil {
				t.Fatalf("translate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("condition = %q, want %q", got, tc.want)
			}
			stmt := b.Select([]string{"id"}, "member_list", "")
			if !reflect.DeepEqual(stmt.Args, tc.args) {
				t.Fatalf("args = %#v, want %#v", stmt.Args, tc.args)
			}
		})
	}
}

func TestTranslateFilterRejectsDescription(t *testing.T) {
	for _, filter := range []string{`description = "secret"`, `public_description = "x"`} {
		_, err := TranslateFilter(NewBuilder(SQLite), filter)
		if apperrors.CodeOf(err) != apperrors.CodeInvalidFilter {
			t.Fatalf("filter %q: expected invalid filter, got %v", filter, err)
		}
	}
}

func TestTranslateFilterRejectsSyntaxError(t *testing.T) {
	_, err := TranslateFilter(NewBuilder(Postgres), `name = `)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidFilter {
		t.Fatalf("expected invalid filter, got %v", err)
	}
}

func TestPostgresTimestampStaysTime(t *testing.T) {
	b := NewBuilder(Postgres)
	if _, err := TranslateFilter(b, `created < timestamp("2024-03-01T12:00:00Z")`); err != nil {
		t.Fatalf("translate: %v", err)
	}
	stmt := b.Select([]string{"id"}, "group_list", "")
	if _, ok := stmt.Args[0].(time.Time); !ok {
		t.Fatalf("arg = %T, want time.Time", stmt.Args[0])
	}
}
