// Package query builds the parameterised SQL behind member and group lists.
//
// A list query is an ordered set of clauses (scope, privacy, search,
// filter) joined with AND. Every user-supplied value is bound as a
// parameter; only column names chosen here ever reach the SQL text.
package query

import "strings"

// Statement is SQL text with its bound arguments in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

// Builder accumulates WHERE conditions and their arguments.
type Builder struct {
	dialect Dialect
	args    []any
	where   []string
}

// NewBuilder returns an empty builder for the dialect.
func NewBuilder(dialect Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// Bind appends v to the argument list and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, b.dialect.Value(v))
	return b.dialect.Placeholder(len(b.args))
}

// Where adds a condition. Empty conditions are ignored.
func (b *Builder) Where(condition string) {
	if condition == "" {
		return
	}
	b.where = append(b.where, condition)
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Select renders the statement.
func (b *Builder) Select(columns []string, from, orderBy string) Statement {
	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(strings.Join(columns, ", "))
	sql.WriteString(" FROM ")
	sql.WriteString(from)
	if len(b.where) > 0 {
		sql.WriteString(" WHERE ")
		sql.WriteString(strings.Join(b.where, " AND "))
	}
	if orderBy != "" {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(orderBy)
	}
	args := make([]any, len(b.args))
	copy(args, b.args)
	return Statement{SQL: sql.String(), Args: args}
}

// Clause contributes one condition to a list query. It returns "" when it
// does not apply.
type Clause func(b *Builder) (string, error)

// Apply evaluates clauses in order and adds their conditions.
func (b *Builder) Apply(clauses ...Clause) error {
	for _, clause := range clauses {
		condition, err := clause(b)
		if err != nil {
			return err
		}
		b.Where(condition)
	}
	return nil
}
