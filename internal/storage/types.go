package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (plans snapshot + jsonl history)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RedistributionAudit records one redistribution run.
// Keep it compact and schema-stable.
type RedistributionAudit struct {
	ID                string
	At                time.Time
	Moved             int
	Failed            int
	RollbackPerformed bool
	Message           string
	ReasonsJSON       string
}
