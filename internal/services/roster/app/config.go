package server

import (
	"fmt"
	"strings"

	"github.com/louisbranch/roster/internal/services/roster/storage"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MCP transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config holds the roster runtime settings.
type Config struct {
	DBDriver    string `env:"ROSTER_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"ROSTER_DB_PATH" envDefault:"data/roster.db"`
	DatabaseURL string `env:"ROSTER_DATABASE_URL"`

	HTTPAddr string `env:"ROSTER_HTTP_ADDR" envDefault:":8095"`
	GRPCAddr string `env:"ROSTER_GRPC_ADDR" envDefault:":8096"`

	MCPTransport   string `env:"ROSTER_MCP_TRANSPORT" envDefault:"http"`
	MCPTokenKey    string `env:"ROSTER_MCP_TOKEN_KEY"`
	MCPStdioSystem int64  `env:"ROSTER_MCP_STDIO_SYSTEM"`

	// Version is reported to MCP clients.
	Version string
}

// Validate checks that the settings describe a runnable process.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("ROSTER_DB_PATH is required for the %s driver", DriverSQLite)
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("ROSTER_DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("storage driver %q is not supported", c.DBDriver)
	}

	switch c.MCPTransport {
	case TransportHTTP:
		if c.MCPTokenKey == "" {
			return fmt.Errorf("ROSTER_MCP_TOKEN_KEY is required for the %s transport", TransportHTTP)
		}
	case TransportStdio:
		if storage.SystemID(c.MCPStdioSystem) <= 0 {
			return fmt.Errorf("ROSTER_MCP_STDIO_SYSTEM is required for the %s transport", TransportStdio)
		}
	default:
		return fmt.Errorf("MCP transport %q is not supported", c.MCPTransport)
	}
	return nil
}
