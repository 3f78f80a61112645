// Package reverifysubmit drives the reverification controller headlessly
// against a running service, submitting a photo from disk.
package reverifysubmit

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/reverify/internal/platform/cmd"
	grpcx "github.com/louisbranch/reverify/internal/platform/grpc"
	"github.com/louisbranch/reverify/internal/platform/i18n"
	"github.com/louisbranch/reverify/internal/platform/logging"
	"github.com/louisbranch/reverify/internal/platform/session"
	"github.com/louisbranch/reverify/internal/platform/timeouts"
	"github.com/louisbranch/reverify/internal/services/reverify/app"
	"github.com/louisbranch/reverify/internal/services/reverify/capture"
	"github.com/louisbranch/reverify/internal/services/reverify/client"
	"github.com/louisbranch/reverify/internal/services/reverify/controller"
	"github.com/louisbranch/reverify/internal/services/reverify/page"
	"go.uber.org/zap"
)

// ErrSubmissionFailed reports a submission the service rejected. The
// reported notice has already been written to the output.
var ErrSubmissionFailed = errors.New("submission failed")

// Config holds reverify-submit command configuration.
type Config struct {
	BaseURL      string        `env:"REVERIFY_BASE_URL" envDefault:"http://localhost:8080"`
	CourseID     string        `env:"REVERIFY_COURSE_ID"`
	CheckpointID string        `env:"REVERIFY_CHECKPOINT_ID"`
	ImagePath    string        `env:"REVERIFY_IMAGE_PATH"`
	Token        string        `env:"REVERIFY_SESSION_TOKEN"`
	SessionKey   string        `env:"REVERIFY_SESSION_KEY"`
	UserID       string        `env:"REVERIFY_USER_ID"`
	HealthAddr   string        `env:"REVERIFY_HEALTH_ADDR"`
	Lang         string        `env:"REVERIFY_LANG"`
	Timeout      time.Duration `env:"REVERIFY_TIMEOUT"`
	LogLevel     string        `env:"REVERIFY_LOG_LEVEL" envDefault:"warn"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Reverify service base URL")
	fs.StringVar(&cfg.CourseID, "course", cfg.CourseID, "Course identifier")
	fs.StringVar(&cfg.CheckpointID, "checkpoint", cfg.CheckpointID, "Checkpoint identifier")
	fs.StringVar(&cfg.ImagePath, "image", cfg.ImagePath, "Path to a JPEG or PNG photo")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Session token")
	fs.StringVar(&cfg.SessionKey, "session-key", cfg.SessionKey, "Hex-encoded session key used to mint a token when -token is empty")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "User id for a minted token")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "Optional gRPC health address to wait on before submitting")
	fs.StringVar(&cfg.Lang, "lang", cfg.Lang, "Language for reported messages")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.ImagePath) == "" {
		return Config{}, errors.New("image path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Persist
	}
	return cfg, nil
}

// Run renders the reverify page in memory, captures the photo from disk,
// clicks submit and writes where the controller navigated or what it
// reported.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSubmit, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return submit(ctx, cfg, token, logger, out)
	})
}

func submit(ctx context.Context, cfg Config, token string, logger *zap.Logger, out io.Writer) error {
	tag := i18n.DefaultTag()
	if parsed, ok := i18n.ParseTag(cfg.Lang); ok {
		tag = parsed
	}
	loc := i18n.Printer(tag)

	if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
		healthCtx, cancel := context.WithTimeout(ctx, timeouts.Persist)
		err := grpcx.Probe(healthCtx, addr, app.HealthServiceName, logger)
		cancel()
		if err != nil {
			return err
		}
	}

	persister, err := client.NewPersister(client.Config{
		BaseURL: cfg.BaseURL,
		Token:   token,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	p, err := page.New(ctx, page.Config{
		Context: controller.SubmissionContext{
			CourseID:     cfg.CourseID,
			CheckpointID: cfg.CheckpointID,
		},
		Localizer: loc,
		Lang:      tag.String(),
		Capture:   capture.Factory{Mode: capture.ModeUpload, Source: capture.FileSource(cfg.ImagePath), Localizer: loc},
		Persister: persister,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.Render(ctx); err != nil {
		return err
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	outcome, err := p.Submit(waitCtx)
	if err != nil {
		return err
	}
	if outcome.Succeeded() {
		_, err := fmt.Fprintf(out, "submitted; navigate to %s\n", p.Navigator.Location())
		return err
	}
	if _, err := fmt.Fprintf(out, "%s: %s\n", outcome.Notice.Title, outcome.Notice.Message); err != nil {
		return err
	}
	return ErrSubmissionFailed
}

func resolveToken(cfg Config) (string, error) {
	if token := strings.TrimSpace(cfg.Token); token != "" {
		return token, nil
	}
	if strings.TrimSpace(cfg.SessionKey) == "" {
		return "", errors.New("a session token or session key is required")
	}
	key, err := session.DecodeKey(cfg.SessionKey)
	if err != nil {
		return "", err
	}
	manager, err := session.NewManager(session.Config{Key: key})
	if err != nil {
		return "", err
	}
	return manager.Issue(cfg.UserID)
}
