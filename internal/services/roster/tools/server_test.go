package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/roster/internal/services/roster/domain"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/louisbranch/roster/internal/services/roster/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestServerListsTools(t *testing.T) {
	session := connectTestServer(t, NewServer(&fakeService{}, FixedCaller(1), Options{}))

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make(map[string]bool, len(result.Tools))
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"reminder_add", "reminder_claim", "member_list", "group_list"} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

func TestServerAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sys := range []storage.System{{ID: 1, Hid: "aaaaa", Name: "Alpha", Created: created}, {ID: 2, Hid: "bbbbb", Name: "Beta", Created: created}} {
		if err := store.PutSystem(ctx, sys); err != nil {
			t.Fatalf("put system: %v", err)
		}
	}
	if err := store.PutMember(ctx, storage.Member{
		ID: 10, Hid: "mtenn", System: 1, Name: "Robin", Description: "secret garden",
		DescriptionPrivacy: storage.PrivacyPrivate, Visibility: storage.PrivacyPublic, Created: created,
	}); err != nil {
		t.Fatalf("put member: %v", err)
	}

	svc := domain.NewService(store)
	owner := connectTestServer(t, NewServer(svc, FixedCaller(1), Options{}))
	outsider := connectTestServer(t, NewServer(svc, FixedCaller(2), Options{}))

	for i, at := range []string{"2026-02-01T10:00:00Z", "2026-02-01T11:00:00Z"} {
		var added ReminderAddResult
		callTool(t, owner, "reminder_add", map[string]any{"mid": 100 + i, "channel": 5, "timestamp": at}, &added)
		if added.System != 1 {
			t.Fatalf("added to system %d", added.System)
		}
	}
	duplicate, err := owner.CallTool(ctx, &mcp.CallToolParams{Name: "reminder_add", Arguments: map[string]any{"mid": 100, "channel": 5}})
	if err != nil {
		t.Fatalf("call duplicate: %v", err)
	}
	if !duplicate.IsError {
		t.Fatal("expected duplicate add to fail")
	}

	var claimed ReminderClaimResult
	callTool(t, owner, "reminder_claim", map[string]any{}, &claimed)
	if len(claimed.Reminders) != 2 || claimed.Reminders[0].Mid != 101 || claimed.Reminders[1].Mid != 100 {
		t.Fatalf("unexpected claim %+v", claimed.Reminders)
	}
	claimed = ReminderClaimResult{}
	callTool(t, owner, "reminder_claim", map[string]any{}, &claimed)
	if len(claimed.Reminders) != 0 {
		t.Fatalf("second claim returned %d reminders", len(claimed.Reminders))
	}

	var ownView ListResult
	callTool(t, owner, "member_list", map[string]any{}, &ownView)
	if len(ownView.Items) != 1 || ownView.Items[0].Description != "secret garden" {
		t.Fatalf("owner view = %+v", ownView.Items)
	}

	var outsideView ListResult
	callTool(t, outsider, "member_list", map[string]any{"system_id": 1}, &outsideView)
	if len(outsideView.Items) != 1 || outsideView.Items[0].Description != "" {
		t.Fatalf("outsider view = %+v", outsideView.Items)
	}

	var searched ListResult
	callTool(t, outsider, "member_list", map[string]any{"system_id": 1, "search": "garden", "search_description": true}, &searched)
	if len(searched.Items) != 0 {
		t.Fatalf("outsider matched a private description: %+v", searched.Items)
	}
}

func TestServerScopesMemberRemindersToCallerSystem(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sys := range []storage.System{{ID: 1, Hid: "aaaaa", Created: created}, {ID: 2, Hid: "bbbbb", Created: created}} {
		if err := store.PutSystem(ctx, sys); err != nil {
			t.Fatalf("put system: %v", err)
		}
	}
	if err := store.PutMember(ctx, storage.Member{ID: 10, Hid: "mtenn", System: 1, Name: "Robin", Created: created}); err != nil {
		t.Fatalf("put member: %v", err)
	}

	svc := domain.NewService(store)
	owner := connectTestServer(t, NewServer(svc, FixedCaller(1), Options{}))
	outsider := connectTestServer(t, NewServer(svc, FixedCaller(2), Options{}))

	var added ReminderAddResult
	callTool(t, owner, "reminder_add", map[string]any{"mid": 500, "channel": 5, "member_id": 10}, &added)

	var stolen ReminderClaimResult
	callTool(t, outsider, "reminder_claim", map[string]any{"member_id": 10}, &stolen)
	if len(stolen.Reminders) != 0 {
		t.Fatalf("outsider claimed %+v", stolen.Reminders)
	}

	var claimed ReminderClaimResult
	callTool(t, owner, "reminder_claim", map[string]any{"member_id": 10}, &claimed)
	if len(claimed.Reminders) != 1 || claimed.Reminders[0].Mid != 500 || claimed.Reminders[0].Seen {
		t.Fatalf("owner claim = %+v", claimed.Reminders)
	}

	planted, err := outsider.CallTool(ctx, &mcp.CallToolParams{Name: "reminder_add", Arguments: map[string]any{"mid": 501, "channel": 5, "member_id": 10}})
	if err != nil {
		t.Fatalf("call outsider add: %v", err)
	}
	if !planted.IsError {
		t.Fatal("expected add for another system's member to fail")
	}
	claimed = ReminderClaimResult{}
	callTool(t, owner, "reminder_claim", map[string]any{"member_id": 10, "include_seen": true}, &claimed)
	if len(claimed.Reminders) != 1 || claimed.Reminders[0].Mid != 500 {
		t.Fatalf("owner history = %+v", claimed.Reminders)
	}
}

func connectTestServer(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result.IsError {
		t.Fatalf("call %s failed: %+v", name, result.Content)
	}
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("encode %s result: %v", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s result: %v", name, err)
	}
}
