// Package app wires the reverify HTTP surface, its gRPC health endpoint
// and the storage lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/louisbranch/reverify/internal/platform/httpx"
	"github.com/louisbranch/reverify/internal/platform/logging"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/platform/timeouts"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
	reverifysqlite "github.com/louisbranch/reverify/internal/services/reverify/storage/sqlite"
	"github.com/louisbranch/reverify/internal/services/reverify/verification"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health service reported for the HTTP surface.
const HealthServiceName = "reverify.v1.ReverifyService"

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Service       Verifier
	Sessions      *session.Manager
	Logger        *zap.Logger
	MaxPhotoBytes int
}

// NewHandler builds the HTTP handler with its middleware chain.
func NewHandler(deps Dependencies) (http.Handler, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("verification service is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logger := logging.OrNop(deps.Logger)
	mux := http.NewServeMux()
	registerRoutes(mux, handlers{
		service:       deps.Service,
		sessions:      deps.Sessions,
		logger:        logger,
		maxPhotoBytes: deps.MaxPhotoBytes,
	})
	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(logger),
		httpx.RequestLogger(logger),
	), nil
}

// Config configures a Server.
type Config struct {
	HTTPAddr      string
	GRPCAddr      string
	DBPath        string
	SessionKey    []byte
	MaxPhotoBytes int
	Logger        *zap.Logger
}

// Server hosts the reverify HTTP surface and the gRPC health service.
type Server struct {
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	store        *reverifysqlite.Store
	logger       *zap.Logger
}

// New opens storage and binds both listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := logging.OrNop(cfg.Logger)
	sessions, err := session.NewManager(session.Config{Key: cfg.SessionKey})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	service, err := verification.NewService(verification.Config{
		Store:   store,
		Decoder: photo.Decoder{MaxBytes: cfg.MaxPhotoBytes},
		Logger:  logger.Named("verification"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	handler, err := NewHandler(Dependencies{
		Service:       service,
		Sessions:      sessions,
		Logger:        logger.Named("http"),
		MaxPhotoBytes: cfg.MaxPhotoBytes,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		grpcListener: grpcListener,
		grpcServer:   grpcServer,
		health:       healthServer,
		store:        store,
		logger:       logger,
	}, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC health listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Serve runs both servers until ctx is canceled or either fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	s.logger.Info("reverify server listening",
		zap.String("http_addr", s.Addr()),
		zap.String("grpc_addr", s.GRPCAddr()),
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), timeouts.Shutdown)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close reverify store", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context, path string) (*reverifysqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := reverifysqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open reverify sqlite store: %w", err)
	}
	return store, nil
}
