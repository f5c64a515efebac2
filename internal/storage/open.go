package storage

import (
	"context"
	"errors"
	"strings"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// Store is the minimal persistence API used by the app shell. The scheduling
// core never touches it.
type Store interface {
	SavePlans(ctx context.Context, set plan.PlanSet) error
	LoadPlans(ctx context.Context) (plan.PlanSet, bool, error)
	AppendRedistribution(ctx context.Context, e RedistributionAudit) error
	RecentRedistributions(ctx context.Context, limit int) ([]RedistributionAudit, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
