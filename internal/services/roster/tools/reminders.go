package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReminderAddInput represents the MCP tool input for adding a reminder.
type ReminderAddInput struct {
	Mid       uint64 `json:"mid" jsonschema:"message id the reminder points at"`
	Channel   uint64 `json:"channel" jsonschema:"channel id of the message"`
	Guild     uint64 `json:"guild,omitempty" jsonschema:"guild id of the message, 0 for direct messages"`
	MemberID  *int64 `json:"member_id,omitempty" jsonschema:"member the reminder targets; omit for a system-wide reminder"`
	Timestamp string `json:"timestamp,omitempty" jsonschema:"RFC3339 time the reminder was created (defaults to now)"`
}

// ReminderAddResult represents the MCP tool output for adding a reminder.
type ReminderAddResult struct {
	Mid    uint64 `json:"mid" jsonschema:"message id of the stored reminder"`
	System int64  `json:"system" jsonschema:"system the reminder belongs to"`
}

// ReminderAddTool defines the MCP tool schema for adding a reminder.
func ReminderAddTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reminder_add",
		Description: "Stores a reminder for the caller system or one of its members. A message id can only be added once.",
	}
}

// ReminderAddHandler executes a reminder add request.
func ReminderAddHandler(svc Service, caller CallerFunc, now func() time.Time) mcp.ToolHandlerFor[ReminderAddInput, ReminderAddResult] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, req *mcp.CallToolRequest, input ReminderAddInput) (*mcp.CallToolResult, ReminderAddResult, error) {
		system, err := caller(req)
		if err != nil {
			return nil, ReminderAddResult{}, err
		}

		timestamp := now().UTC()
		if input.Timestamp != "" {
			timestamp, err = time.Parse(time.RFC3339, input.Timestamp)
			if err != nil {
				return nil, ReminderAddResult{}, fmt.Errorf("invalid timestamp: %w", err)
			}
		}

		reminder := storage.Reminder{
			Mid:       input.Mid,
			Channel:   input.Channel,
			Guild:     input.Guild,
			System:    system,
			Timestamp: timestamp,
		}
		if input.MemberID != nil {
			member := storage.MemberID(*input.MemberID)
			reminder.Member = &member
		}
		if err := svc.AddReminder(ctx, reminder); err != nil {
			return nil, ReminderAddResult{}, fmt.Errorf("reminder add failed: %w", err)
		}
		return nil, ReminderAddResult{Mid: input.Mid, System: int64(system)}, nil
	}
}

// ReminderClaimInput represents the MCP tool input for claiming reminders.
type ReminderClaimInput struct {
	MemberID          *int64 `json:"member_id,omitempty" jsonschema:"claim reminders for this member; omit to claim for the caller system"`
	IncludeSeen       bool   `json:"include_seen,omitempty" jsonschema:"also return reminders that were already claimed"`
	IncludeSystemWide bool   `json:"include_system_wide,omitempty" jsonschema:"for system claims, also match reminders targeted at members"`
}

// ReminderResult is one claimed reminder as it was before the claim.
type ReminderResult struct {
	Mid       uint64 `json:"mid" jsonschema:"message id"`
	Channel   uint64 `json:"channel" jsonschema:"channel id"`
	Guild     uint64 `json:"guild" jsonschema:"guild id"`
	MemberID  *int64 `json:"member_id,omitempty" jsonschema:"targeted member, if any"`
	System    int64  `json:"system" jsonschema:"owning system"`
	Seen      bool   `json:"seen" jsonschema:"whether the reminder had been claimed before this call"`
	Timestamp string `json:"timestamp" jsonschema:"RFC3339 creation time"`
}

// ReminderClaimResult represents the MCP tool output for claiming reminders.
type ReminderClaimResult struct {
	Reminders []ReminderResult `json:"reminders" jsonschema:"claimed reminders, newest first"`
}

// ReminderClaimTool defines the MCP tool schema for claiming reminders.
func ReminderClaimTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reminder_claim",
		Description: "Marks reminders as seen and returns them, newest first. Each unseen reminder is returned to only one caller.",
	}
}

// ReminderClaimHandler executes a reminder claim request.
func ReminderClaimHandler(svc Service, caller CallerFunc) mcp.ToolHandlerFor[ReminderClaimInput, ReminderClaimResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ReminderClaimInput) (*mcp.CallToolResult, ReminderClaimResult, error) {
		system, err := caller(req)
		if err != nil {
			return nil, ReminderClaimResult{}, err
		}

		scope := storage.SystemScope(system)
		if input.MemberID != nil {
			scope = storage.MemberScope(system, storage.MemberID(*input.MemberID))
		}
		claimed, err := svc.ClaimReminders(ctx, scope, input.IncludeSeen, input.IncludeSystemWide)
		if err != nil {
			return nil, ReminderClaimResult{}, fmt.Errorf("reminder claim failed: %w", err)
		}

		result := ReminderClaimResult{Reminders: make([]ReminderResult, 0, len(claimed))}
		for _, r := range claimed {
			result.Reminders = append(result.Reminders, reminderResult(r))
		}
		return nil, result, nil
	}
}

func reminderResult(r storage.Reminder) ReminderResult {
	out := ReminderResult{
		Mid:       r.Mid,
		Channel:   r.Channel,
		Guild:     r.Guild,
		System:    int64(r.System),
		Seen:      r.Seen,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if r.Member != nil {
		member := int64(*r.Member)
		out.MemberID = &member
	}
	return out
}
