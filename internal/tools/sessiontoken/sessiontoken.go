// Package sessiontoken mints a reverify session token for local testing.
package sessiontoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/reverify/internal/platform/cmd"
	"github.com/louisbranch/reverify/internal/platform/session"
)

// Config holds token minting configuration.
type Config struct {
	SessionKey string        `env:"REVERIFY_SESSION_KEY"`
	UserID     string        `env:"REVERIFY_USER_ID"`
	TTL        time.Duration `env:"REVERIFY_SESSION_TTL" envDefault:"12h"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.SessionKey, "session-key", cfg.SessionKey, "Hex-encoded session signing key")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "User id carried by the token")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "Token lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run mints a token and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return errors.New("user id is required")
	}
	key, err := session.DecodeKey(cfg.SessionKey)
	if err != nil {
		return err
	}
	manager, err := session.NewManager(session.Config{Key: key, TTL: cfg.TTL, Now: now})
	if err != nil {
		return err
	}
	token, err := manager.Issue(cfg.UserID)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintf(out, "REVERIFY_SESSION_TOKEN=%s\n", token)
	return err
}
