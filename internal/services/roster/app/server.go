// Package server wires the roster runtime: storage, the MCP tool surface and
// the gRPC health service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/louisbranch/roster/internal/platform/logging"
	"github.com/louisbranch/roster/internal/platform/timeouts"
	"github.com/louisbranch/roster/internal/services/roster/domain"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/louisbranch/roster/internal/services/roster/storage/postgres"
	"github.com/louisbranch/roster/internal/services/roster/storage/sqlite"
	"github.com/louisbranch/roster/internal/services/roster/tools"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reporting store readiness.
const HealthService = "roster"

const healthInterval = 10 * time.Second

// Server hosts the roster MCP surface and gRPC health service.
type Server struct {
	cfg        Config
	logger     zerolog.Logger
	store      storage.Store
	mcp        *mcp.Server
	httpServer *http.Server
	httpLn     net.Listener
	grpcServer *grpc.Server
	grpcLn     net.Listener
	health     *health.Server
	closeOnce  sync.Once
}

// New opens storage and binds listeners for cfg.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, timeouts.StorageOpen)
	defer cancel()
	store, err := openStore(openCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, store: store}
	svc := domain.NewService(store, domain.WithLogger(logger))
	var caller tools.CallerFunc = tools.TokenCaller
	if cfg.MCPTransport == TransportStdio {
		caller = tools.FixedCaller(storage.SystemID(cfg.MCPStdioSystem))
	}
	s.mcp = tools.NewServer(svc, caller, tools.Options{Version: cfg.Version})

	s.grpcLn, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.MCPTransport == TransportHTTP {
		s.httpLn, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
		}
		s.httpServer = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}
	return s, nil
}

// Run creates and serves a roster server until context cancellation.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	s, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// HTTPAddr returns the bound HTTP address, empty for the stdio transport.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// GRPCAddr returns the bound gRPC health address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcLn == nil {
		return ""
	}
	return s.grpcLn.Addr().String()
}

// Handler returns the HTTP routes: /healthz and the bearer-protected /mcp
// endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(logging.HTTPMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	verifier := tools.TokenVerifier([]byte(s.cfg.MCPTokenKey), nil)
	r.Handle("/mcp", auth.RequireBearerToken(verifier, &auth.RequireBearerTokenOptions{})(mcpHandler))
	return r
}

// Serve runs the configured transports until ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 3)
	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errs <- fmt.Errorf("serve %s: %w", name, err)
			}
			cancel()
		}()
	}

	s.logger.Info().Str("addr", s.GRPCAddr()).Msg("gRPC health listening")
	run("gRPC", func() error {
		err := s.grpcServer.Serve(s.grpcLn)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	})
	go s.watchStore(ctx)

	switch s.cfg.MCPTransport {
	case TransportHTTP:
		s.logger.Info().Str("addr", s.HTTPAddr()).Msg("MCP HTTP listening")
		run("HTTP", func() error {
			err := s.httpServer.Serve(s.httpLn)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	case TransportStdio:
		s.logger.Info().Int64("system", s.cfg.MCPStdioSystem).Msg("MCP stdio serving")
		run("MCP stdio", func() error {
			err := s.mcp.Run(ctx, &mcp.StdioTransport{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	<-ctx.Done()
	s.shutdown()
	wg.Wait()
	close(errs)
	return errors.Join(collect(errs)...)
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("shutdown HTTP server")
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.httpLn != nil {
			_ = s.httpLn.Close()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.grpcLn != nil {
			_ = s.grpcLn.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("close roster store")
			}
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StorageOperation)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// watchStore mirrors store reachability into the gRPC health status.
func (s *Server) watchStore(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		s.checkStore(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) checkStore(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.StorageOperation)
	defer cancel()
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.store.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("store ping failed")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(HealthService, status)
}

func openStore(ctx context.Context, cfg Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open roster postgres store: %w", err)
		}
		return store, nil
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open roster sqlite store: %w", err)
		}
		return store, nil
	}
}

func collect(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}
