package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.plans.json            (whole-set snapshot, atomic rename)
//   - <prefix>.redistributions.jsonl (append-only JSON Lines history)
//
// Plans are snapshot-replaced wholesale on every save, matching the engine's
// "regenerate the whole set" model.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	plansPath   string
	historyFile *os.File
	historyPath string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	historyPath := prefix + ".redistributions.jsonl"
	hf, err := os.OpenFile(historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:         log,
		plansPath:   prefix + ".plans.json",
		historyFile: hf,
		historyPath: historyPath,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile != nil {
		err := s.historyFile.Close()
		s.historyFile = nil
		return err
	}
	return nil
}

func (s *fileStore) SavePlans(ctx context.Context, set plan.PlanSet) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.plansPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.plansPath)
}

func (s *fileStore) LoadPlans(ctx context.Context) (plan.PlanSet, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.plansPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	var set plan.PlanSet
	if err := json.NewDecoder(f).Decode(&set); err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (s *fileStore) AppendRedistribution(ctx context.Context, e RedistributionAudit) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return errors.New("history file closed")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.historyFile).Encode(e)
}

func (s *fileStore) RecentRedistributions(ctx context.Context, limit int) ([]RedistributionAudit, error) {
	_ = ctx
	s.mu.Lock()
	path := s.historyPath
	s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []RedistributionAudit
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e RedistributionAudit
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
