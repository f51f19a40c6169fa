package tools

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "roster"

// Options configures the tool server.
type Options struct {
	Version string
	// Now stamps reminders added without a timestamp.
	Now func() time.Time
}

// NewServer builds an MCP server exposing the roster tools.
func NewServer(svc Service, caller CallerFunc, opts Options) *mcp.Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	Register(server, svc, caller, opts.Now)
	return server
}

// Register adds the roster tools to server.
func Register(server *mcp.Server, svc Service, caller CallerFunc, now func() time.Time) {
	mcp.AddTool(server, ReminderAddTool(), ReminderAddHandler(svc, caller, now))
	mcp.AddTool(server, ReminderClaimTool(), ReminderClaimHandler(svc, caller))
	mcp.AddTool(server, MemberListTool(), MemberListHandler(svc, caller))
	mcp.AddTool(server, GroupListTool(), GroupListHandler(svc, caller))
}
