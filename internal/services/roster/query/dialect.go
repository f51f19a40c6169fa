package query

import (
	"fmt"
	"strconv"
	"time"
)

// Dialect renders the engine-specific parts of a list query.
type Dialect interface {
	// Placeholder returns the numbered parameter marker for argument n,
	// counting from 1. Numbered markers may be repeated in one statement.
	Placeholder(n int) string
	// Contains returns a predicate that is true when column contains the
	// bound needle, ignoring case. A NULL column never matches.
	Contains(column, needle string) string
	// Value converts a Go value into the form the engine stores.
	Value(v any) any
}

// SQLite renders statements for the SQLite engine. Case folding relies on
// the casefold SQL function registered by the SQLite store.
var SQLite Dialect = sqliteDialect{}

// Postgres renders statements for the PostgreSQL engine.
var Postgres Dialect = postgresDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(n int) string {
	return "?" + strconv.Itoa(n)
}

func (sqliteDialect) Contains(column, needle string) string {
	return fmt.Sprintf("instr(casefold(coalesce(%s, '')), casefold(%s)) > 0", column, needle)
}

func (sqliteDialect) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().UnixMilli()
	}
	return v
}

type postgresDialect struct{}

func (postgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (postgresDialect) Contains(column, needle string) string {
	return fmt.Sprintf("position(lower(%s::text) in lower(coalesce(%s, ''))) > 0", needle, column)
}

func (postgresDialect) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}
