package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/roster/internal/services/roster/domain"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListInput represents the MCP tool input shared by member_list and group_list.
type ListInput struct {
	SystemID          int64  `json:"system_id,omitempty" jsonschema:"system to list (defaults to the caller system)"`
	GroupID           *int64 `json:"group_id,omitempty" jsonschema:"member_list only: list the members of this group instead of the system"`
	Privacy           string `json:"privacy,omitempty" jsonschema:"keep only entities with this visibility (public, private)"`
	Search            string `json:"search,omitempty" jsonschema:"case-insensitive text matched against names"`
	SearchDescription bool   `json:"search_description,omitempty" jsonschema:"also match search against descriptions"`
	Filter            string `json:"filter,omitempty" jsonschema:"AIP-160 filter over hid, name, display_name, privacy and created"`
	Limit             int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 50, max 500)"`
}

// EntityResult is one list entry.
type EntityResult struct {
	ID          int64  `json:"id" jsonschema:"entity identifier"`
	Hid         string `json:"hid" jsonschema:"short human id"`
	System      int64  `json:"system" jsonschema:"owning system"`
	Name        string `json:"name" jsonschema:"entity name"`
	DisplayName string `json:"display_name,omitempty" jsonschema:"display name"`
	Description string `json:"description,omitempty" jsonschema:"description visible to the caller"`
	Privacy     string `json:"privacy" jsonschema:"visibility (public, private)"`
	Created     string `json:"created" jsonschema:"RFC3339 creation time"`
	MemberCount *int   `json:"member_count,omitempty" jsonschema:"group_list only: number of members"`
}

// ListResult represents the MCP tool output of member_list and group_list.
type ListResult struct {
	Items     []EntityResult `json:"items" jsonschema:"entries, newest first"`
	Truncated bool           `json:"truncated,omitempty" jsonschema:"true when more entries matched than the limit"`
}

// MemberListTool defines the MCP tool schema for listing members.
func MemberListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "member_list",
		Description: "Lists members of a system or group. Private descriptions are only visible to the owning system.",
	}
}

// GroupListTool defines the MCP tool schema for listing groups.
func GroupListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "group_list",
		Description: "Lists groups of a system with their member counts. Private descriptions are only visible to the owning system.",
	}
}

// MemberListHandler executes a member list request.
func MemberListHandler(svc Service, caller CallerFunc) mcp.ToolHandlerFor[ListInput, ListResult] {
	return listHandler(svc, caller, domain.EntityMember)
}

// GroupListHandler executes a group list request.
func GroupListHandler(svc Service, caller CallerFunc) mcp.ToolHandlerFor[ListInput, ListResult] {
	return listHandler(svc, caller, domain.EntityGroup)
}

func listHandler(svc Service, caller CallerFunc, kind domain.EntityKind) mcp.ToolHandlerFor[ListInput, ListResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListResult, error) {
		callerSystem, err := caller(req)
		if err != nil {
			return nil, ListResult{}, err
		}
		target := callerSystem
		if input.SystemID != 0 {
			target = storage.SystemID(input.SystemID)
		}

		opts, err := listOptions(input, kind, callerSystem, target)
		if err != nil {
			return nil, ListResult{}, err
		}
		limit := input.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		limit = min(limit, maxListLimit)

		seq, err := svc.QueryEntities(ctx, kind, target, opts)
		if err != nil {
			return nil, ListResult{}, fmt.Errorf("%s list failed: %w", kind, err)
		}

		result := ListResult{Items: []EntityResult{}}
		for entity, err := range seq {
			if err != nil {
				return nil, ListResult{}, fmt.Errorf("%s list failed: %w", kind, err)
			}
			if len(result.Items) == limit {
				result.Truncated = true
				break
			}
			result.Items = append(result.Items, entityResult(entity))
		}
		return nil, result, nil
	}
}

func listOptions(input ListInput, kind domain.EntityKind, caller, target storage.SystemID) (storage.ListQueryOptions, error) {
	opts := storage.ListQueryOptions{
		Search:            input.Search,
		SearchDescription: input.SearchDescription,
		Context:           storage.LookupFor(caller, target),
		Filter:            input.Filter,
	}
	if input.Privacy != "" {
		level, err := storage.ParsePrivacyLevel(input.Privacy)
		if err != nil {
			return storage.ListQueryOptions{}, err
		}
		opts.PrivacyFilter = &level
	}
	if input.GroupID != nil {
		if kind != domain.EntityMember {
			return storage.ListQueryOptions{}, fmt.Errorf("group_id only applies to member_list")
		}
		group := storage.GroupID(*input.GroupID)
		opts.GroupFilter = &group
		// A group list is not bound to the target system, so the caller
		// cannot be shown to own its members.
		opts.Context = storage.LookupByNonOwner
	}
	return opts, nil
}

func entityResult(e domain.ListedEntity) EntityResult {
	out := EntityResult{
		ID:          e.ID,
		Hid:         e.Hid,
		System:      int64(e.System),
		Name:        e.Name,
		DisplayName: e.DisplayName,
		Description: e.Description,
		Privacy:     e.Visibility.String(),
		Created:     e.Created.UTC().Format(time.RFC3339),
	}
	if e.Kind == domain.EntityGroup {
		count := e.MemberCount
		out.MemberCount = &count
	}
	return out
}
