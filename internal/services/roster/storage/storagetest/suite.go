// Package storagetest holds the behaviour suite every roster storage engine
// must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// OpenFunc returns an empty store. Cleanup is registered on t.
type OpenFunc func(t *testing.T) storage.Store

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open OpenFunc) {
	t.Run("ClaimScenario", func(t *testing.T) { testClaimScenario(t, open(t)) })
	t.Run("ClaimReturnsPreUpdateValues", func(t *testing.T) { testClaimPreUpdate(t, open(t)) })
	t.Run("ClaimIncludeSeenIsRepeatable", func(t *testing.T) { testClaimIncludeSeen(t, open(t)) })
	t.Run("ClaimEmptyScope", func(t *testing.T) { testClaimEmpty(t, open(t)) })
	t.Run("ClaimConcurrentExclusive", func(t *testing.T) { testClaimConcurrent(t, open(t)) })
	t.Run("ClaimForeignMember", func(t *testing.T) { testClaimForeignMember(t, open(t)) })
	t.Run("AddReminderDuplicateMid", func(t *testing.T) { testAddDuplicate(t, open(t)) })
	t.Run("AddReminderDistinctMids", func(t *testing.T) { testAddDistinct(t, open(t)) })
	t.Run("AddReminderMidOutOfRange", func(t *testing.T) { testAddOutOfRange(t, open(t)) })
	t.Run("AddReminderForeignMember", func(t *testing.T) { testAddForeignMember(t, open(t)) })
	t.Run("MemberListOrderAndScope", func(t *testing.T) { testMemberListOrder(t, open(t)) })
	t.Run("MemberListPrivacyIsolation", func(t *testing.T) { testPrivacyIsolation(t, open(t)) })
	t.Run("MemberListCaseInsensitiveSearch", func(t *testing.T) { testCaseInsensitive(t, open(t)) })
	t.Run("MemberListGroupFilter", func(t *testing.T) { testGroupFilter(t, open(t)) })
	t.Run("MemberListPrivacyFilter", func(t *testing.T) { testPrivacyFilter(t, open(t)) })
	t.Run("MemberListAIPFilter", func(t *testing.T) { testAIPFilter(t, open(t)) })
	t.Run("MemberListStopsEarly", func(t *testing.T) { testStopsEarly(t, open(t)) })
	t.Run("GroupListMemberCount", func(t *testing.T) { testGroupList(t, open(t)) })
}

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const (
	systemA storage.SystemID = 1
	systemB storage.SystemID = 2
)

func memberPtr(id storage.MemberID) *storage.MemberID { return &id }

func addReminder(t *testing.T, store storage.Store, mid uint64, system storage.SystemID, member *storage.MemberID, at time.Time) {
	t.Helper()
	err := store.AddReminder(context.Background(), storage.Reminder{
		Mid:       mid,
		Channel:   100 + mid,
		Guild:     900,
		System:    system,
		Member:    member,
		Timestamp: at,
	})
	if err != nil {
		t.Fatalf("add reminder %d: %v", mid, err)
	}
}

// seedMember stores a bare member and its system so reminders can target it.
func seedMember(t *testing.T, store storage.Store, system storage.SystemID, id storage.MemberID) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutSystem(ctx, storage.System{ID: system, Hid: fmt.Sprintf("s%04d", system), Created: base}); err != nil {
		t.Fatalf("put system %d: %v", system, err)
	}
	member := storage.Member{
		ID:                 id,
		Hid:                fmt.Sprintf("m%04d", id),
		System:             system,
		Name:               fmt.Sprintf("member %d", id),
		DescriptionPrivacy: storage.PrivacyPublic,
		Visibility:         storage.PrivacyPublic,
		Created:            base,
	}
	if err := store.PutMember(ctx, member); err != nil {
		t.Fatalf("put member %d: %v", id, err)
	}
}

func claim(t *testing.T, store storage.Store, scope storage.ClaimScope, opts storage.ClaimOptions) []storage.Reminder {
	t.Helper()
	got, err := store.ClaimPending(context.Background(), scope, opts)
	if err != nil {
		t.Fatalf("claim %s %d: %v", scope.Kind, scope.ID, err)
	}
	if got == nil {
		t.Fatal("claim returned nil slice")
	}
	return got
}

func mids(reminders []storage.Reminder) []uint64 {
	out := make([]uint64, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, r.Mid)
	}
	return out
}

func assertMids(t *testing.T, label string, got []storage.Reminder, want ...uint64) {
	t.Helper()
	gotMids := mids(got)
	if fmt.Sprint(gotMids) != fmt.Sprint(append([]uint64{}, want...)) {
		t.Fatalf("%s: mids = %v, want %v", label, gotMids, want)
	}
}

func testClaimScenario(t *testing.T, store storage.Store) {
	const member storage.MemberID = 10
	seedMember(t, store, systemA, member)
	// R1 member-targeted, R2 system-wide, R3 member-targeted.
	addReminder(t, store, 1, systemA, memberPtr(member), base)
	addReminder(t, store, 2, systemA, nil, base.Add(time.Minute))
	addReminder(t, store, 3, systemA, memberPtr(member), base.Add(2*time.Minute))

	assertMids(t, "member claim", claim(t, store, storage.MemberScope(systemA, member), storage.ClaimOptions{}), 3, 1)
	assertMids(t, "member reclaim", claim(t, store, storage.MemberScope(systemA, member), storage.ClaimOptions{}))
	assertMids(t, "system claim", claim(t, store, storage.SystemScope(systemA), storage.ClaimOptions{}), 2)

	all := claim(t, store, storage.SystemScope(systemA), storage.ClaimOptions{IncludeSeen: true, IncludeSystemWide: true})
	assertMids(t, "system history", all, 3, 2, 1)
	for _, r := range all {
		if !r.Seen {
			t.Fatalf("reminder %d should already be seen", r.Mid)
		}
	}
}

func testClaimPreUpdate(t *testing.T, store storage.Store) {
	const member storage.MemberID = 11
	seedMember(t, store, systemA, member)
	addReminder(t, store, 20, systemA, memberPtr(member), base)

	got := claim(t, store, storage.MemberScope(systemA, member), storage.ClaimOptions{})
	if len(got) != 1 {
		t.Fatalf("expected one reminder, got %d", len(got))
	}
	r := got[0]
	if r.Seen {
		t.Fatal("claimed reminder must carry its pre-update seen value")
	}
	if r.Channel != 120 || r.Guild != 900 || r.System != systemA || r.Member == nil || *r.Member != member {
		t.Fatalf("unexpected reminder %+v", r)
	}
	if !r.Timestamp.Equal(base) {
		t.Fatalf("timestamp = %v, want %v", r.Timestamp, base)
	}

	again := claim(t, store, storage.MemberScope(systemA, member), storage.ClaimOptions{IncludeSeen: true})
	if len(again) != 1 || !again[0].Seen {
		t.Fatalf("seen must stay true after a claim, got %+v", again)
	}
}

func testClaimIncludeSeen(t *testing.T, store storage.Store) {
	addReminder(t, store, 30, systemB, nil, base)
	addReminder(t, store, 31, systemB, nil, base.Add(time.Second))

	opts := storage.ClaimOptions{IncludeSeen: true}
	first := claim(t, store, storage.SystemScope(systemB), opts)
	second := claim(t, store, storage.SystemScope(systemB), opts)
	assertMids(t, "first", first, 31, 30)
	assertMids(t, "second", second, 31, 30)
	for _, r := range second {
		if !r.Seen {
			t.Fatalf("reminder %d should be seen on the second pass", r.Mid)
		}
	}
}

func testClaimEmpty(t *testing.T, store storage.Store) {
	got := claim(t, store, storage.MemberScope(systemA, 999), storage.ClaimOptions{})
	if len(got) != 0 {
		t.Fatalf("expected no reminders, got %d", len(got))
	}
	if _, err := store.ClaimPending(context.Background(), storage.ClaimScope{}, storage.ClaimOptions{}); err == nil {
		t.Fatal("expected error for unspecified scope")
	}
}

func testClaimConcurrent(t *testing.T, store storage.Store) {
	const (
		member  storage.MemberID = 40
		total                    = 40
		workers                  = 8
	)
	seedMember(t, store, systemA, member)
	for i := 0; i < total; i++ {
		addReminder(t, store, uint64(1000+i), systemA, memberPtr(member), base.Add(time.Duration(i)*time.Second))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []uint64
		errs    []error
	)
	start := make(chan struct{})
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 3; i++ {
				got, err := store.ClaimPending(context.Background(), storage.MemberScope(systemA, member), storage.ClaimOptions{})
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				}
				claimed = append(claimed, mids(got)...)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent claims failed: %v", errors.Join(errs...))
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i] < claimed[j] })
	if len(claimed) != total {
		t.Fatalf("claimed %d reminders across workers, want %d", len(claimed), total)
	}
	for i := 1; i < len(claimed); i++ {
		if claimed[i] == claimed[i-1] {
			t.Fatalf("reminder %d delivered twice", claimed[i])
		}
	}
}

func testAddDuplicate(t *testing.T, store storage.Store) {
	addReminder(t, store, 50, systemA, nil, base)
	err := store.AddReminder(context.Background(), storage.Reminder{Mid: 50, System: systemA, Timestamp: base})
	if apperrors.CodeOf(err) != apperrors.CodeStorageConstraint {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if !apperrors.IsStorage(err) {
		t.Fatal("constraint failure must be a storage error")
	}
}

func testAddDistinct(t *testing.T, store storage.Store) {
	// The largest storable id exercises the unsigned round trip.
	addReminder(t, store, storage.MaxMessageID, systemB, nil, base)
	addReminder(t, store, 61, systemB, nil, base)

	got := claim(t, store, storage.SystemScope(systemB), storage.ClaimOptions{})
	if len(got) != 2 {
		t.Fatalf("expected both reminders to persist, got %d", len(got))
	}
	found := false
	for _, r := range got {
		if r.Mid == storage.MaxMessageID {
			found = true
		}
	}
	if !found {
		t.Fatalf("large message id did not round trip: %v", mids(got))
	}
}

func testAddOutOfRange(t *testing.T, store storage.Store) {
	err := store.AddReminder(context.Background(), storage.Reminder{Mid: storage.MaxMessageID + 1, System: systemA, Timestamp: base})
	if err != storage.ErrMessageIDRange {
		t.Fatalf("expected message id range error, got %v", err)
	}
	assertMids(t, "after rejected add", claim(t, store, storage.SystemScope(systemA), storage.ClaimOptions{IncludeSeen: true, IncludeSystemWide: true}))
}

func testClaimForeignMember(t *testing.T, store storage.Store) {
	const member storage.MemberID = 12
	seedMember(t, store, systemA, member)
	addReminder(t, store, 70, systemA, memberPtr(member), base)

	assertMids(t, "foreign claim", claim(t, store, storage.MemberScope(systemB, member), storage.ClaimOptions{}))
	assertMids(t, "foreign claim with history", claim(t, store, storage.MemberScope(systemB, member), storage.ClaimOptions{IncludeSeen: true}))

	got := claim(t, store, storage.MemberScope(systemA, member), storage.ClaimOptions{})
	assertMids(t, "owner claim", got, 70)
	if got[0].Seen {
		t.Fatal("foreign claim must not mark the reminder seen")
	}
}

func testAddForeignMember(t *testing.T, store storage.Store) {
	const member storage.MemberID = 13
	seedMember(t, store, systemA, member)

	err := store.AddReminder(context.Background(), storage.Reminder{Mid: 80, System: systemB, Member: memberPtr(member), Timestamp: base})
	if err != storage.ErrMemberNotInSystem {
		t.Fatalf("expected member ownership error, got %v", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("code = %s, want invalid argument", apperrors.CodeOf(err))
	}
	err = store.AddReminder(context.Background(), storage.Reminder{Mid: 81, System: systemB, Member: memberPtr(999), Timestamp: base})
	if err != storage.ErrMemberNotInSystem {
		t.Fatalf("expected member ownership error for unknown member, got %v", err)
	}

	assertMids(t, "foreign system", claim(t, store, storage.SystemScope(systemB), storage.ClaimOptions{IncludeSeen: true, IncludeSystemWide: true}))
	assertMids(t, "owner system", claim(t, store, storage.SystemScope(systemA), storage.ClaimOptions{IncludeSeen: true, IncludeSystemWide: true}))
}

func seedDirectory(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	for _, sys := range []storage.System{
		{ID: systemA, Hid: "aaaaa", Name: "Alpha", Created: base},
		{ID: systemB, Hid: "bbbbb", Name: "Beta", Created: base},
	} {
		if err := store.PutSystem(ctx, sys); err != nil {
			t.Fatalf("put system: %v", err)
		}
	}
	members := []storage.Member{
		{ID: 1, Hid: "mone", System: systemA, Name: "Émile", DisplayName: "Em", Description: "likes tea",
			DescriptionPrivacy: storage.PrivacyPublic, Visibility: storage.PrivacyPublic, Created: base},
		{ID: 2, Hid: "mtwo", System: systemA, Name: "Robin", Description: "secret garden",
			DescriptionPrivacy: storage.PrivacyPrivate, Visibility: storage.PrivacyPublic, Created: base.Add(time.Hour)},
		{ID: 3, Hid: "mthr", System: systemA, Name: "Sage", DisplayName: "SAGE the Wise",
			DescriptionPrivacy: storage.PrivacyPublic, Visibility: storage.PrivacyPrivate, Created: base.Add(2 * time.Hour)},
		{ID: 4, Hid: "mfou", System: systemB, Name: "Robin", Description: "other system",
			DescriptionPrivacy: storage.PrivacyPublic, Visibility: storage.PrivacyPublic, Created: base.Add(3 * time.Hour)},
	}
	for _, m := range members {
		if err := store.PutMember(ctx, m); err != nil {
			t.Fatalf("put member %d: %v", m.ID, err)
		}
	}
	groups := []storage.Group{
		{ID: 1, Hid: "gone", System: systemA, Name: "Tea Club", Description: "hidden agenda",
			DescriptionPrivacy: storage.PrivacyPrivate, Visibility: storage.PrivacyPublic, Created: base},
		{ID: 2, Hid: "gtwo", System: systemA, Name: "Night Shift",
			DescriptionPrivacy: storage.PrivacyPublic, Visibility: storage.PrivacyPrivate, Created: base.Add(time.Hour)},
	}
	for _, g := range groups {
		if err := store.PutGroup(ctx, g); err != nil {
			t.Fatalf("put group %d: %v", g.ID, err)
		}
	}
	added, err := store.AddGroupMembers(ctx, 1, []storage.MemberID{1, 2})
	if err != nil {
		t.Fatalf("add group members: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
}

func listMembers(t *testing.T, store storage.Store, system storage.SystemID, opts storage.ListQueryOptions) []storage.ListedMember {
	t.Helper()
	seq, err := store.QueryMemberList(context.Background(), system, opts)
	if err != nil {
		t.Fatalf("query member list: %v", err)
	}
	var out []storage.ListedMember
	for m, err := range seq {
		if err != nil {
			t.Fatalf("iterate member list: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func memberIDs(members []storage.ListedMember) []storage.MemberID {
	out := make([]storage.MemberID, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func assertMembers(t *testing.T, label string, got []storage.ListedMember, want ...storage.MemberID) {
	t.Helper()
	if fmt.Sprint(memberIDs(got)) != fmt.Sprint(append([]storage.MemberID{}, want...)) {
		t.Fatalf("%s: ids = %v, want %v", label, memberIDs(got), want)
	}
}

func testMemberListOrder(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	got := listMembers(t, store, systemA, storage.ListQueryOptions{Context: storage.LookupByOwner})
	assertMembers(t, "system A", got, 3, 2, 1)
	for i := 1; i < len(got); i++ {
		if got[i].Created.After(got[i-1].Created) {
			t.Fatalf("list not sorted by created desc: %v", got)
		}
	}
	assertMembers(t, "system B", listMembers(t, store, systemB, storage.ListQueryOptions{}), 4)
	assertMembers(t, "unknown system", listMembers(t, store, 77, storage.ListQueryOptions{}))
}

func testPrivacyIsolation(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	opts := storage.ListQueryOptions{Search: "secret", SearchDescription: true}

	opts.Context = storage.LookupByNonOwner
	assertMembers(t, "non-owner", listMembers(t, store, systemA, opts))

	opts.Context = storage.LookupByOwner
	owner := listMembers(t, store, systemA, opts)
	assertMembers(t, "owner", owner, 2)
	if owner[0].Description != "secret garden" {
		t.Fatalf("owner description = %q", owner[0].Description)
	}

	// A non-owner listing never sees private text in the row either.
	for _, m := range listMembers(t, store, systemA, storage.ListQueryOptions{}) {
		if m.ID == 2 && (m.Description != "" || m.PublicDescription != "") {
			t.Fatalf("private description leaked: %+v", m)
		}
	}

	// Public descriptions stay searchable for outside viewers.
	public := listMembers(t, store, systemA, storage.ListQueryOptions{Search: "TEA", SearchDescription: true})
	assertMembers(t, "public description", public, 1)
	if public[0].Description != "likes tea" {
		t.Fatalf("public description = %q", public[0].Description)
	}
}

func testCaseInsensitive(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	assertMembers(t, "unicode name", listMembers(t, store, systemA, storage.ListQueryOptions{Search: "éMI"}), 1)
	assertMembers(t, "display name", listMembers(t, store, systemA, storage.ListQueryOptions{Search: "the wise"}), 3)
	assertMembers(t, "null display name", listMembers(t, store, systemA, storage.ListQueryOptions{Search: "rob"}), 2)
	assertMembers(t, "description off", listMembers(t, store, systemA, storage.ListQueryOptions{Search: "tea"}))
}

func testGroupFilter(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	group := storage.GroupID(1)
	assertMembers(t, "group 1", listMembers(t, store, systemA, storage.ListQueryOptions{GroupFilter: &group}), 2, 1)

	removed, err := store.RemoveGroupMembers(context.Background(), group, []storage.MemberID{2, 3})
	if err != nil {
		t.Fatalf("remove group members: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	assertMembers(t, "group 1 after removal", listMembers(t, store, systemA, storage.ListQueryOptions{GroupFilter: &group}), 1)

	empty := storage.GroupID(2)
	assertMembers(t, "empty group", listMembers(t, store, systemA, storage.ListQueryOptions{GroupFilter: &empty}))
}

func testPrivacyFilter(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	private := storage.PrivacyPrivate
	public := storage.PrivacyPublic
	assertMembers(t, "private", listMembers(t, store, systemA, storage.ListQueryOptions{PrivacyFilter: &private}), 3)
	assertMembers(t, "public", listMembers(t, store, systemA, storage.ListQueryOptions{PrivacyFilter: &public}), 2, 1)
	assertMembers(t, "public search", listMembers(t, store, systemA, storage.ListQueryOptions{PrivacyFilter: &public, Search: "sage"}))
}

func testAIPFilter(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	got := listMembers(t, store, systemA, storage.ListQueryOptions{
		Filter: fmt.Sprintf(`created >= timestamp("%s") AND hid != "mthr"`, base.Add(30*time.Minute).Format(time.RFC3339)),
	})
	assertMembers(t, "filter", got, 2)

	if _, err := store.QueryMemberList(context.Background(), systemA, storage.ListQueryOptions{Filter: `description = "secret garden"`}); apperrors.CodeOf(err) != apperrors.CodeInvalidFilter {
		t.Fatalf("expected invalid filter error, got %v", err)
	}
}

func testStopsEarly(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	seq, err := store.QueryMemberList(context.Background(), systemA, storage.ListQueryOptions{})
	if err != nil {
		t.Fatalf("query member list: %v", err)
	}
	count := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		count++
		break
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	// The connection must be released so later calls still work.
	assertMembers(t, "after early stop", listMembers(t, store, systemB, storage.ListQueryOptions{}), 4)
}

func testGroupList(t *testing.T, store storage.Store) {
	seedDirectory(t, store)
	seq, err := store.QueryGroupList(context.Background(), systemA, storage.ListQueryOptions{Search: "agenda", SearchDescription: true, Context: storage.LookupByOwner})
	if err != nil {
		t.Fatalf("query group list: %v", err)
	}
	var groups []storage.ListedGroup
	for g, err := range seq {
		if err != nil {
			t.Fatalf("iterate group list: %v", err)
		}
		groups = append(groups, g)
	}
	if len(groups) != 1 || groups[0].ID != 1 || groups[0].MemberCount != 2 {
		t.Fatalf("unexpected groups %+v", groups)
	}

	seq, err = store.QueryGroupList(context.Background(), systemA, storage.ListQueryOptions{Search: "agenda", SearchDescription: true})
	if err != nil {
		t.Fatalf("query group list: %v", err)
	}
	for g, err := range seq {
		if err != nil {
			t.Fatalf("iterate group list: %v", err)
		}
		t.Fatalf("non-owner matched private group description: %+v", g)
	}
}
