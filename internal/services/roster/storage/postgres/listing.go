package postgres

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/louisbranch/roster/internal/services/roster/query"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// QueryMemberList lists members visible under opts, newest first.
func (s *Store) QueryMemberList(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedMember, error], error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	stmt, err := query.MemberList(query.Postgres, system, opts)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, s.pool, stmt, "member list", scanListedMember), nil
}

// QueryGroupList lists groups visible under opts, newest first.
func (s *Store) QueryGroupList(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedGroup, error], error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	stmt, err := query.GroupList(query.Postgres, system, opts)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, s.pool, stmt, "group list", scanListedGroup), nil
}

func queryRows[T any](ctx context.Context, pool *pgxpool.Pool, stmt query.Statement, what string, scan func(pgx.Row) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := pool.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			yield(zero, classify("query "+what, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			value, err := scan(rows)
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

func scanListedMember(row pgx.Row) (storage.ListedMember, error) {
	var (
		id, system                           int64
		visibility                           int16
		hid, name                            string
		displayName, description, publicDesc *string
		created                              time.Time
	)
	if err := row.Scan(&id, &hid, &system, &name, &displayName, &description, &publicDesc, &visibility, &created); err != nil {
		return storage.ListedMember{}, fmt.Errorf("scan member row: %w", err)
	}
	return storage.ListedMember{
		ID:                storage.MemberID(id),
		Hid:               hid,
		System:            storage.SystemID(system),
		Name:              name,
		DisplayName:       deref(displayName),
		Description:       deref(description),
		PublicDescription: deref(publicDesc),
		Visibility:        storage.PrivacyLevel(visibility),
		Created:           created.UTC(),
	}, nil
}

func scanListedGroup(row pgx.Row) (storage.ListedGroup, error) {
	var (
		id, system, count                    int64
		visibility                           int16
		hid, name                            string
		displayName, description, publicDesc *string
		created                              time.Time
	)
	if err := row.Scan(&id, &hid, &system, &name, &displayName, &description, &publicDesc, &visibility, &count, &created); err != nil {
		return storage.ListedGroup{}, fmt.Errorf("scan group row: %w", err)
	}
	return storage.ListedGroup{
		ID:                storage.GroupID(id),
		Hid:               hid,
		System:            storage.SystemID(system),
		Name:              name,
		DisplayName:       deref(displayName),
		Description:       deref(description),
		PublicDescription: deref(publicDesc),
		Visibility:        storage.PrivacyLevel(visibility),
		MemberCount:       int(count),
		Created:           created.UTC(),
	}, nil
}
