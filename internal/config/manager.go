package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "planweave/pkg/logx"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the config document for a running process. It loads the file,
// hands out the current snapshot, and in serve mode reloads on file change:
// a new document is validated before it is committed and fanned out, so
// subscribers only ever see documents the planner can act on.
type Manager struct {
	path string

	mu      sync.RWMutex
	cur     *Config
	curHash uint64

	// subMu guards the subscriber list and every send, so publish can never
	// race Unsubscribe closing a channel.
	subMu sync.Mutex
	subs  []chan *Config

	log      logx.Logger
	validate func(cfg *Config) error
}

func NewManager(path string) *Manager { return &Manager{path: path} }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs the check a reloaded document must pass before it
// replaces the current one. Load does not consult it; the boot path surfaces
// validation errors itself.
func (m *Manager) SetValidator(fn func(cfg *Config) error) { m.validate = fn }

// Load reads and commits the document at the manager's path.
func (m *Manager) Load() (*Config, error) {
	cfg, err := ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

// Get returns the last committed document, nil before the first Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cur = cfg
	m.curHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Reload re-reads the file and, when the document content changed and passes
// the validator, commits it and notifies subscribers. The bool reports
// whether a new document was applied; an unchanged file is not an error.
func (m *Manager) Reload() (bool, error) {
	cfg, err := ReadFile(m.path)
	if err != nil {
		return false, err
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.curHash
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	if m.validate != nil {
		if err := m.validate(cfg); err != nil {
			return false, fmt.Errorf("config rejected: %w", err)
		}
	}
	m.commit(cfg)
	m.publish(cfg)
	return true, nil
}

// Subscribe registers a channel that receives each applied reload. The
// channel stays open until Unsubscribe.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		// Latest snapshot wins: when a subscriber lags, drop one queued
		// document to make room rather than block the reload path.
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped", logx.Int("queue_cap", cap(ch)))
		}
	}
}

const (
	reloadDebounce  = 250 * time.Millisecond
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// Watch blocks until ctx is done, reloading the config whenever the file
// changes on disk. Editors rewrite files in different ways (truncate+write,
// rename-over, delete+create), so any event naming the file schedules a
// reload, debounced to ride out partial writes. A watcher that stops
// delivering is recreated with a capped backoff.
func (m *Manager) Watch(ctx context.Context) error {
	base := filepath.Base(m.path)
	dir := filepath.Dir(m.path)

	var (
		pendingMu sync.Mutex
		pending   *time.Timer
	)
	schedule := func() {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(reloadDebounce, func() {
			applied, err := m.Reload()
			switch {
			case err != nil:
				m.log.Warn("config reload failed", logx.String("path", m.path), logx.Err(err))
			case applied:
				m.log.Info("config reloaded", logx.String("path", m.path))
			default:
				m.log.Debug("config unchanged, reload skipped", logx.String("path", m.path))
			}
		})
	}

	backoff := watchBackoffMin
	for {
		began := time.Now()
		err := m.watchOnce(ctx, dir, base, schedule)
		if ctx.Err() != nil {
			return nil
		}
		// An incarnation that ran for a while earns a fresh backoff.
		if time.Since(began) > watchBackoffMax {
			backoff = watchBackoffMin
		}
		m.log.Warn("config watcher stopped, restarting",
			logx.Err(err), logx.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > watchBackoffMax {
			backoff = watchBackoffMax
		}
	}
}

// watchOnce runs a single watcher incarnation. It returns nil when ctx ends
// and an error when the watcher breaks and needs to be recreated.
func (m *Manager) watchOnce(ctx context.Context, dir, base string, schedule func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", base))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			// Compare basenames: backends disagree on absolute vs relative
			// paths, and some filesystems are case-insensitive.
			if strings.EqualFold(filepath.Base(ev.Name), base) {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			if err == nil {
				continue
			}
			// Overflow means events were lost; the file may have changed.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				schedule()
				continue
			}
			m.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
		}
	}
}
