package server

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DBDriver:     DriverSQLite,
		DBPath:       "data/roster.db",
		MCPTransport: TransportHTTP,
		MCPTokenKey:  "key",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "sqlite over http", mutate: func(*Config) {}},
		{name: "postgres", mutate: func(c *Config) {
			c.DBDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/roster"
		}},
		{name: "stdio", mutate: func(c *Config) {
			c.MCPTransport = TransportStdio
			c.MCPTokenKey = ""
			c.MCPStdioSystem = 3
		}},
		{name: "missing sqlite path", mutate: func(c *Config) { c.DBPath = " " }, wantErr: "ROSTER_DB_PATH"},
		{name: "missing postgres url", mutate: func(c *Config) { c.DBDriver = DriverPostgres }, wantErr: "ROSTER_DATABASE_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: "not supported"},
		{name: "missing token key", mutate: func(c *Config) { c.MCPTokenKey = "" }, wantErr: "ROSTER_MCP_TOKEN_KEY"},
		{name: "missing stdio system", mutate: func(c *Config) { c.MCPTransport = TransportStdio }, wantErr: "ROSTER_MCP_STDIO_SYSTEM"},
		{name: "unknown transport", mutate: func(c *Config) { c.MCPTransport = "websocket" }, wantErr: "not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
