// Package store persists an audit trail of operator actions. The bio update
// history itself is deliberately in-memory only; this log exists so "who
// switched the mode at 3am" survives a restart.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"telebio/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. If Driver is empty or "none", storage is
// disabled and Open returns (nil, nil).
type Config struct {
	Driver      string // "sqlite" or "none"
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Entry records one control-bot command.
type Entry struct {
	At            time.Time
	ActorID       int64
	ActorUsername string
	ChatID        int64
	Command       string
	Args          string
	OK            bool
	Error         string
	TookMS        int64
}

type Store interface {
	AppendAudit(ctx context.Context, e Entry) error

	// RecentAudit returns up to n entries, newest first.
	RecentAudit(ctx context.Context, n int) ([]Entry, error)

	Close() error
}

func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
