package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/louisbranch/roster/internal/services/roster/query"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// QueryMemberList lists members visible under opts, newest first.
func (s *Store) QueryMemberList(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedMember, error], error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	stmt, err := query.MemberList(query.SQLite, system, opts)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, s.sqlDB, stmt, "member list", scanListedMember), nil
}

// QueryGroupList lists groups visible under opts, newest first.
func (s *Store) QueryGroupList(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedGroup, error], error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	stmt, err := query.GroupList(query.SQLite, system, opts)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, s.sqlDB, stmt, "group list", scanListedGroup), nil
}

// queryRows runs stmt when iteration starts and yields one value per row.
// Iteration stops after the first error.
func queryRows[T any](ctx context.Context, db *sql.DB, stmt query.Statement, what string, scan func(scanner) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := db.QueryContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			yield(zero, classify("query "+what, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			value, err := scan(rows.Scan)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(value, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, classify("iterate "+what, err))
		}
	}
}

func scanListedMember(scan scanner) (storage.ListedMember, error) {
	var (
		id, system, visibility, created      int64
		hid, name                            string
		displayName, description, publicDesc sql.NullString
	)
	if err := scan(&id, &hid, &system, &name, &displayName, &description, &publicDesc, &visibility, &created); err != nil {
		return storage.ListedMember{}, fmt.Errorf("scan member row: %w", err)
	}
	return storage.ListedMember{
		ID:                storage.MemberID(id),
		Hid:               hid,
		System:            storage.SystemID(system),
		Name:              name,
		DisplayName:       displayName.String,
		Description:       description.String,
		PublicDescription: publicDesc.String,
		Visibility:        storage.PrivacyLevel(visibility),
		Created:           fromMillis(created),
	}, nil
}

func scanListedGroup(scan scanner) (storage.ListedGroup, error) {
	var (
		id, system, visibility, count, created int64
		hid, name                              string
		displayName, description, publicDesc   sql.NullString
	)
	if err := scan(&id, &hid, &system, &name, &displayName, &description, &publicDesc, &visibility, &count, &created); err != nil {
		return storage.ListedGroup{}, fmt.Errorf("scan group row: %w", err)
	}
	return storage.ListedGroup{
		ID:                storage.GroupID(id),
		Hid:               hid,
		System:            storage.SystemID(system),
		Name:              name,
		DisplayName:       displayName.String,
		Description:       description.String,
		PublicDescription: publicDesc.String,
		Visibility:        storage.PrivacyLevel(visibility),
		MemberCount:       int(count),
		Created:           fromMillis(created),
	}, nil
}
