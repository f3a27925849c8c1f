// Package journal keeps an operational record of dispatched alerts.
// The default driver is a no-op; sqlite can be enabled via config.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry describes one dispatched alert.
type Entry struct {
	At          time.Time
	ChatID      int64
	Origin      string
	Destination string
	TravelDate  string
	Trips       int
	Chars       int
}

type Journal interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

type Config struct {
	Driver string // "none" (default) or "sqlite"
	Path   string
}

// Open returns the journal for the configured driver.
func Open(cfg Config, log zerolog.Logger) (Journal, error) {
	switch strings.TrimSpace(cfg.Driver) {
	case "", "none":
		return nopJournal{}, nil
	case "sqlite":
		return openSQLite(cfg, log.With().Str("component", "journal").Logger())
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", cfg.Driver)
	}
}

type nopJournal struct{}

func (nopJournal) Append(context.Context, Entry) error { return nil }
func (nopJournal) Close() error                        { return nil }
