// Package storage defines the roster persistence contract shared by the
// SQLite and PostgreSQL engines.
package storage

import (
	"context"
	"iter"
)

// ReminderStore persists reminders and hands each pending one to exactly one
// claimer.
type ReminderStore interface {
	// AddReminder inserts one reminder. A duplicate message id is a
	// constraint failure.
	AddReminder(ctx context.Context, reminder Reminder) error
	// ClaimPending marks every reminder in scope as seen and returns the rows
	// as they were before the update, newest first. Concurrent claims over
	// the same scope never return the same unseen reminder twice.
	ClaimPending(ctx context.Context, scope ClaimScope, opts ClaimOptions) ([]Reminder, error)
}

// ListStore answers privacy-aware member and group list queries.
//
// The returned sequence is lazy: the query runs when iteration starts and
// the underlying rows are released when iteration stops. An error is
// returned up front only for options that cannot be translated to SQL.
type ListStore interface {
	QueryMemberList(ctx context.Context, system SystemID, opts ListQueryOptions) (iter.Seq2[ListedMember, error], error)
	QueryGroupList(ctx context.Context, system SystemID, opts ListQueryOptions) (iter.Seq2[ListedGroup, error], error)
}

// DirectoryStore writes the systems, members and groups that list queries
// read from.
type DirectoryStore interface {
	PutSystem(ctx context.Context, system System) error
	PutMember(ctx context.Context, member Member) error
	PutGroup(ctx context.Context, group Group) error
	// AddGroupMembers adds members to a group and reports how many were not
	// already in it.
	AddGroupMembers(ctx context.Context, group GroupID, members []MemberID) (int, error)
	// RemoveGroupMembers removes members from a group and reports how many
	// were actually removed.
	RemoveGroupMembers(ctx context.Context, group GroupID, members []MemberID) (int, error)
}

// Store is the full roster persistence surface.
type Store interface {
	ReminderStore
	ListStore
	DirectoryStore
	Ping(ctx context.Context) error
	Close() error
}
