package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"planweave/internal/eventbus"
	pprofsvc "planweave/internal/observability/pprof"
	"planweave/internal/plan"
	"planweave/internal/storage"
	logx "planweave/pkg/logx"
)

const (
	defaultRegenerateCron = "0 4 * * *"
	defaultSweepCron      = "30 4 * * *"
)

// App is the long-running shell: it owns the config watcher, the cron
// triggers, storage, and the in-memory plan set. The scheduling core stays
// pure; everything stateful lives here.
type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	loc  *time.Location
	cron *cron.Cron

	mu    sync.Mutex
	plans plan.PlanSet
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Throttle: logx.ThrottleConfig{
			Enabled:  cfg.Logging.Throttle.Enabled,
			MinLevel: cfg.Logging.Throttle.MinLevel,
			PerSec:   cfg.Logging.Throttle.RatePerSec,
		},
	})
	log = log.With(logx.String("comp", "app"))

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Planner.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("planner.timezone: invalid %q: %w", tz, err)
		}
		loc = l
	}

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		loc:     loc,
		cron:    cron.New(cron.WithLocation(loc)),
	}, nil
}

// Bus exposes the event bus for embedding callers.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(cfg *Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if tz := strings.TrimSpace(cfg.Planner.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("planner.timezone: invalid %q: %w", tz, err)
			}
		}
		if cfg.Serve != nil {
			parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
			for key, spec := range map[string]string{
				"serve.regenerate_cron": cfg.Serve.RegenerateCron,
				"serve.sweep_cron":      cfg.Serve.SweepCron,
			} {
				if strings.TrimSpace(spec) == "" {
					continue
				}
				if _, err := parser.Parse(spec); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
			}
			if strings.TrimSpace(cfg.Serve.PprofAddr) != "" {
				if _, err := pprofsvc.New(cfg.Serve.PprofAddr, logx.Nop()); err != nil {
					return fmt.Errorf("serve.pprof_addr: %w", err)
				}
			}
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	// Seed from storage so a restart preserves manual moves and history.
	if a.store != nil {
		if set, ok, err := a.store.LoadPlans(a.sup.Context()); err != nil {
			a.log.Warn("loading stored plans failed", logx.Err(err))
		} else if ok {
			a.setPlans(set)
			a.log.Info("plans restored", logx.Int("days", len(set)))
		}
	}

	// Initial generation.
	if err := a.Regenerate(a.sup.Context()); err != nil {
		return err
	}

	// Cron triggers.
	cfg := a.cfgm.Get()
	regenSpec, sweepSpec := defaultRegenerateCron, defaultSweepCron
	if cfg.Serve != nil {
		if s := strings.TrimSpace(cfg.Serve.RegenerateCron); s != "" {
			regenSpec = s
		}
		if s := strings.TrimSpace(cfg.Serve.SweepCron); s != "" {
			sweepSpec = s
		}
	}
	if _, err := a.cron.AddFunc(regenSpec, func() {
		if err := a.Regenerate(a.sup.Context()); err != nil {
			a.log.Error("scheduled regenerate failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("serve.regenerate_cron: %w", err)
	}
	if _, err := a.cron.AddFunc(sweepSpec, func() {
		if err := a.Sweep(a.sup.Context()); err != nil {
			a.log.Error("scheduled sweep failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("serve.sweep_cron: %w", err)
	}
	a.cron.Start()
	a.log.Info("cron triggers armed",
		logx.String("regenerate", regenSpec),
		logx.String("sweep", sweepSpec),
	)

	// Optional profiling endpoint, loopback only.
	if cfg.Serve != nil && strings.TrimSpace(cfg.Serve.PprofAddr) != "" {
		dbg, err := pprofsvc.New(cfg.Serve.PprofAddr, a.log.With(logx.String("comp", "pprof")))
		if err != nil {
			return fmt.Errorf("serve.pprof_addr: %w", err)
		}
		a.sup.GoRestart("debug.pprof", dbg.Run)
	}

	// Optional: log events for observability/debug.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs, planChanged := SummarizeConfigChange(lastApplied, newCfg)
				lastApplied = newCfg

				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}

				for _, s := range sections {
					switch s {
					case "storage":
						a.log.Warn("storage config changed; restart required for changes to take effect")
					case "serve":
						a.log.Warn("serve config changed; restart required for cron changes to take effect")
					}
				}

				// apply logging updates
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
					Throttle: logx.ThrottleConfig{
						Enabled:  newCfg.Logging.Throttle.Enabled,
						MinLevel: newCfg.Logging.Throttle.MinLevel,
						PerSec:   newCfg.Logging.Throttle.RatePerSec,
					},
				})

				a.bus.Publish(eventbus.Event{
					Type: eventbus.TypeConfigReloaded,
					Data: eventbus.ConfigReloaded{Sections: sections, PlanChanged: planChanged},
				})

				if planChanged {
					if err := a.Regenerate(c); err != nil {
						a.log.Error("regenerate after config change failed", logx.Err(err))
					}
				}

				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			}
		}
	})

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	// Let in-flight cron jobs finish, bounded by the caller's deadline.
	cronDone := a.cron.Stop()
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		a.log.Warn("cron jobs still running at stop deadline")
	}

	if err := a.sup.Wait(ctx); err != nil && ctx.Err() != nil {
		a.log.Warn("supervisor wait timed out", logx.Err(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func (a *App) today() string {
	return plan.FormatDate(time.Now().In(a.loc))
}

func (a *App) setPlans(set plan.PlanSet) {
	a.mu.Lock()
	a.plans = set
	a.mu.Unlock()
}

// Plans returns the current plan set (shared snapshot; callers must not
// mutate it).
func (a *App) Plans() plan.PlanSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plans
}
