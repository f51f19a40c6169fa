package domain

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

func TestAddReminderValidates(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore())
	if err := svc.AddReminder(context.Background(), storage.Reminder{System: 1}); !errors.Is(err, ErrMessageIDRequired) {
		t.Fatalf("expected message id error, got %v", err)
	}
	if err := svc.AddReminder(context.Background(), storage.Reminder{Mid: 1}); !errors.Is(err, ErrSystemRequired) {
		t.Fatalf("expected system error, got %v", err)
	}
}

func TestAddReminderRejectsOutOfRangeMessageID(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store)
	err := svc.AddReminder(context.Background(), storage.Reminder{Mid: storage.MaxMessageID + 1, System: 1})
	if err != storage.ErrMessageIDRange {
		t.Fatalf("expected message id range error, got %v", err)
	}
	if _, ok := store.lastDeadline(); ok {
		t.Fatal("out of range id must not reach the store")
	}
}

func TestAddReminderAppliesTimeout(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, WithTimeout(time.Minute))
	if err := svc.AddReminder(context.Background(), storage.Reminder{Mid: 7, System: 1}); err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	deadline, ok := store.lastDeadline()
	if !ok {
		t.Fatal("expected store call to carry a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > time.Minute {
		t.Fatalf("unexpected deadline in %v", remaining)
	}
}

func TestClaimRemindersPassesOptions(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.claimResult = []storage.Reminder{{Mid: 2}, {Mid: 1}}
	svc := NewService(store)

	got, err := svc.ClaimReminders(context.Background(), storage.SystemScope(3), true, true)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 2 || got[0].Mid != 2 {
		t.Fatalf("unexpected claim %+v", got)
	}
	if store.lastScope != storage.SystemScope(3) {
		t.Fatalf("scope = %+v", store.lastScope)
	}
	if !store.lastOpts.IncludeSeen || !store.lastOpts.IncludeSystemWide {
		t.Fatalf("options = %+v", store.lastOpts)
	}
}

func TestClaimRemindersRejectsInvalidScope(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store)
	if _, err := svc.ClaimReminders(context.Background(), storage.ClaimScope{}, false, false); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if store.claims != 0 {
		t.Fatal("invalid scope must not reach the store")
	}
}

func TestClaimRemindersPropagatesStorageError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.claimErr = apperrors.Wrap(apperrors.CodeStorageUnavailable, "claim", errors.New("down"))
	svc := NewService(store)
	_, err := svc.ClaimReminders(context.Background(), storage.MemberScope(1, 1), false, false)
	if !apperrors.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestQueryMembersReleasesUnusedSequence(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.members = []storage.ListedMember{{ID: 1}}
	svc := NewService(store, WithTimeout(20*time.Millisecond))

	if _, err := svc.QueryMembers(context.Background(), 1, storage.ListQueryOptions{}); err != nil {
		t.Fatalf("query: %v", err)
	}
	select {
	case <-store.listCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("query context was not released for a sequence that was never iterated")
	}
	if store.listStarted() {
		t.Fatal("query ran without iteration")
	}
}

func TestNilServiceReportsNotConfigured(t *testing.T) {
	t.Parallel()

	var svc *Service
	if err := svc.AddReminder(context.Background(), storage.Reminder{Mid: 1, System: 1}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if _, err := NewService(nil).QueryMembers(context.Background(), 1, storage.ListQueryOptions{}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestQueryMembersIsLazyAndBounded(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.members = []storage.ListedMember{{ID: 3}, {ID: 2}, {ID: 1}}
	svc := NewService(store, WithTimeout(time.Minute))

	seq, err := svc.QueryMembers(context.Background(), 1, storage.ListQueryOptions{Search: "a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if store.listStarted() {
		t.Fatal("query ran before iteration")
	}

	var ids []storage.MemberID
	for m, err := range seq {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		ids = append(ids, m.ID)
		if len(ids) == 2 {
			break
		}
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if !store.listStarted() {
		t.Fatal("query never ran")
	}
	if err := store.listCtx.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("query context should be released after iteration, got %v", err)
	}
	if store.lastListOpts.Search != "a" {
		t.Fatalf("options not forwarded: %+v", store.lastListOpts)
	}
}

func TestQueryMembersRequiresSystem(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore())
	if _, err := svc.QueryMembers(context.Background(), 0, storage.ListQueryOptions{}); !errors.Is(err, ErrSystemRequired) {
		t.Fatalf("expected system error, got %v", err)
	}
	group := storage.GroupID(2)
	if _, err := svc.QueryMembers(context.Background(), 0, storage.ListQueryOptions{GroupFilter: &group}); err != nil {
		t.Fatalf("group scoped list should not need a system: %v", err)
	}
}

func TestQueryMembersReturnsBuildError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = apperrors.New(apperrors.CodeInvalidFilter, "bad filter")
	svc := NewService(store)
	if _, err := svc.QueryMembers(context.Background(), 1, storage.ListQueryOptions{Filter: "x ="}); apperrors.CodeOf(err) != apperrors.CodeInvalidFilter {
		t.Fatalf("expected invalid filter, got %v", err)
	}
}

func TestQueryEntitiesMapsGroups(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.groups = []storage.ListedGroup{{ID: 9, Name: "Tea Club", MemberCount: 4, Visibility: storage.PrivacyPublic}}
	svc := NewService(store)

	seq, err := svc.QueryEntities(context.Background(), EntityGroup, 1, storage.ListQueryOptions{})
	if err != nil {
		t.Fatalf("query entities: %v", err)
	}
	var got []ListedEntity
	for e, err := range seq {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != 1 || got[0].Kind != EntityGroup || got[0].ID != 9 || got[0].MemberCount != 4 {
		t.Fatalf("unexpected entities %+v", got)
	}

	if _, err := svc.QueryEntities(context.Background(), "switch", 1, storage.ListQueryOptions{}); !errors.Is(err, ErrUnknownEntityKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestQueryEntitiesForwardsRowErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.members = []storage.ListedMember{{ID: 1}}
	store.rowErr = apperrors.New(apperrors.CodeStorageUnavailable, "connection lost")
	svc := NewService(store)

	seq, err := svc.QueryEntities(context.Background(), EntityMember, 1, storage.ListQueryOptions{})
	if err != nil {
		t.Fatalf("query entities: %v", err)
	}
	var sawErr bool
	for _, err := range seq {
		if err != nil {
			sawErr = apperrors.IsStorage(err)
		}
	}
	if !sawErr {
		t.Fatal("expected storage error from iteration")
	}
}

type fakeStore struct {
	mu           sync.Mutex
	deadline     time.Time
	hasDeadline  bool
	claims       int
	claimResult  []storage.Reminder
	claimErr     error
	lastScope    storage.ClaimScope
	lastOpts     storage.ClaimOptions
	members      []storage.ListedMember
	groups       []storage.ListedGroup
	listErr      error
	rowErr       error
	listCtx      context.Context
	started      bool
	lastListOpts storage.ListQueryOptions
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) lastDeadline() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline, f.hasDeadline
}

func (f *fakeStore) listStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeStore) AddReminder(ctx context.Context, _ storage.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline, f.hasDeadline = ctx.Deadline()
	return nil
}

func (f *fakeStore) ClaimPending(_ context.Context, scope storage.ClaimScope, opts storage.ClaimOptions) ([]storage.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	f.lastScope = scope
	f.lastOpts = opts
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.claimResult, nil
}

func (f *fakeStore) QueryMemberList(ctx context.Context, _ storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedMember, error], error) {
	return fakeList(f, ctx, opts, f.members)
}

func (f *fakeStore) QueryGroupList(ctx context.Context, _ storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedGroup, error], error) {
	return fakeList(f, ctx, opts, f.groups)
}

func fakeList[T any](f *fakeStore, ctx context.Context, opts storage.ListQueryOptions, rows []T) (iter.Seq2[T, error], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	f.listCtx = ctx
	f.lastListOpts = opts
	f.mu.Unlock()
	return func(yield func(T, error) bool) {
		f.mu.Lock()
		f.started = true
		f.mu.Unlock()
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
		if f.rowErr != nil {
			var zero T
			yield(zero, f.rowErr)
		}
	}, nil
}
