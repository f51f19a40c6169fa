// Package roster parses roster service flags and launches the service.
package roster

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/roster/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/roster/internal/platform/grpc"
	"github.com/louisbranch/roster/internal/platform/logging"
	"github.com/louisbranch/roster/internal/platform/timeouts"
	server "github.com/louisbranch/roster/internal/services/roster/app"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/louisbranch/roster/internal/services/roster/tools"
	"github.com/rs/zerolog"
)

// Config holds roster command configuration.
type Config struct {
	Server  server.Config
	Logging logging.Settings

	TokenTTL time.Duration `env:"ROSTER_MCP_TOKEN_TTL" envDefault:"720h"`

	// Probe checks the health of a running roster process and exits.
	Probe      bool
	// IssueToken prints an MCP bearer token for this system id and exits.
	IssueToken int64
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Server.DBDriver, "db-driver", cfg.Server.DBDriver, "Storage driver (sqlite, postgres)")
	fs.StringVar(&cfg.Server.DBPath, "db-path", cfg.Server.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "MCP HTTP listen address")
	fs.StringVar(&cfg.Server.GRPCAddr, "grpc-addr", cfg.Server.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.Server.MCPTransport, "transport", cfg.Server.MCPTransport, "MCP transport (http, stdio)")
	fs.Int64Var(&cfg.Server.MCPStdioSystem, "system", cfg.Server.MCPStdioSystem, "System the stdio transport acts for")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	fs.BoolVar(&cfg.Probe, "probe", false, "Check the health of a running roster process and exit")
	fs.Int64Var(&cfg.IssueToken, "issue-token", 0, "Print an MCP bearer token for this system id and exit")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "Lifetime of tokens printed by -issue-token")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the command selected by cfg. Tokens are written to out.
func Run(ctx context.Context, cfg Config, out io.Writer, logger zerolog.Logger) error {
	switch {
	case cfg.IssueToken != 0:
		return issueToken(cfg, out)
	case cfg.Probe:
		return platformgrpc.Probe(ctx, probeAddr(cfg.Server.GRPCAddr), server.HealthService, timeouts.GRPCDial, logger)
	default:
		return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceRoster, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
			return server.Run(ctx, cfg.Server, logger)
		})
	}
}

func issueToken(cfg Config, out io.Writer) error {
	if cfg.Server.MCPTokenKey == "" {
		return errors.New("ROSTER_MCP_TOKEN_KEY is required to issue tokens")
	}
	if cfg.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", cfg.TokenTTL)
	}
	token, err := tools.IssueToken([]byte(cfg.Server.MCPTokenKey), storage.SystemID(cfg.IssueToken), cfg.TokenTTL, time.Now())
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// probeAddr turns a listen address into one a local client can dial.
func probeAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
