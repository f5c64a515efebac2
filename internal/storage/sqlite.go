//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SavePlans replaces the stored set wholesale inside one transaction,
// matching the engine's regenerate-everything model.
func (s *sqliteStore) SavePlans(ctx context.Context, set plan.PlanSet) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM day_plans`); err != nil {
		return err
	}
	for _, date := range set.Dates() {
		payload, err := json.Marshal(set[date])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_plans(date, payload) VALUES(?,?)`,
			date, string(payload),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadPlans(ctx context.Context) (plan.PlanSet, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, payload FROM day_plans`)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	set := plan.PlanSet{}
	for rows.Next() {
		var date, payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, false, err
		}
		var dp plan.DayPlan
		if err := json.Unmarshal([]byte(payload), &dp); err != nil {
			return nil, false, err
		}
		set[date] = dp
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(set) == 0 {
		return nil, false, nil
	}
	return set, true, nil
}

func (s *sqliteStore) AppendRedistribution(ctx context.Context, e RedistributionAudit) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redistributions(id, at, moved, failed, rolled_back, message, reasons)
		 VALUES(?,?,?,?,?,?,?)`,
		e.ID, e.At.Format(time.RFC3339Nano), e.Moved, e.Failed,
		boolInt(e.RollbackPerformed), e.Message, nullStr(e.ReasonsJSON),
	)
	return err
}

func (s *sqliteStore) RecentRedistributions(ctx context.Context, limit int) ([]RedistributionAudit, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, moved, failed, rolled_back, message, COALESCE(reasons, '')
		 FROM redistributions ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RedistributionAudit
	for rows.Next() {
		var e RedistributionAudit
		var at string
		var rolled int
		if err := rows.Scan(&e.ID, &at, &e.Moved, &e.Failed, &rolled, &e.Message, &e.ReasonsJSON); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.RollbackPerformed = rolled != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
