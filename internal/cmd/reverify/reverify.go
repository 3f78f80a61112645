// Package reverify parses reverification service flags and launches the
// service.
package reverify

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/reverify/internal/platform/cmd"
	"github.com/louisbranch/reverify/internal/platform/logging"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/services/reverify/app"
	"github.com/louisbranch/reverify/internal/services/reverify/photo"
)

// Config holds reverify command configuration.
type Config struct {
	HTTPAddr      string `env:"REVERIFY_HTTP_ADDR" envDefault:"localhost:8080"`
	GRPCAddr      string `env:"REVERIFY_GRPC_ADDR" envDefault:"localhost:8081"`
	DBPath        string `env:"REVERIFY_DB_PATH" envDefault:"data/reverify.db"`
	SessionKey    string `env:"REVERIFY_SESSION_KEY"`
	MaxPhotoBytes int    `env:"REVERIFY_MAX_PHOTO_BYTES"`
	LogLevel      string `env:"REVERIFY_LOG_LEVEL" envDefault:"info"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Submission database path")
	fs.StringVar(&cfg.SessionKey, "session-key", cfg.SessionKey, "Hex-encoded session signing key")
	fs.IntVar(&cfg.MaxPhotoBytes, "max-photo-bytes", cfg.MaxPhotoBytes, "Largest accepted photo in bytes")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = photo.DefaultMaxBytes
	}
	return cfg, nil
}

// Run starts the reverification HTTP service and its gRPC health server.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	key, err := session.DecodeKey(cfg.SessionKey)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReverify, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		server, err := app.New(ctx, app.Config{
			HTTPAddr:      cfg.HTTPAddr,
			GRPCAddr:      cfg.GRPCAddr,
			DBPath:        cfg.DBPath,
			SessionKey:    key,
			MaxPhotoBytes: cfg.MaxPhotoBytes,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer server.Close()
		return server.Serve(ctx)
	})
}
