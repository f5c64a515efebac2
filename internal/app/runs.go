package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"planweave/internal/eventbus"
	"planweave/internal/plan"
	"planweave/internal/redistribute"
	"planweave/internal/storage"
	logx "planweave/pkg/logx"
)

// Regenerate rebuilds the plan set from the current config, preserving
// manually pinned sessions from the previous set.
func (a *App) Regenerate(ctx context.Context) error {
	cfg := a.cfgm.Get()
	settings, tasks, commitments, err := planInputs(cfg)
	if err != nil {
		return err
	}

	today := a.today()
	existing := a.Plans()

	res, err := plan.GenerateWithPreservation(tasks, settings, commitments, existing, plan.Options{
		Today:       today,
		Log:         a.log.With(logx.String("comp", "generator")),
		HorizonDays: cfg.Planner.HorizonDays,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	a.setPlans(res.Plans)
	sessions := 0
	for _, dp := range res.Plans {
		sessions += len(dp.Sessions)
	}
	a.log.Info("plan generated",
		logx.String("mode", string(settings.Mode)),
		logx.Int("days", len(res.Plans)),
		logx.Int("sessions", sessions),
		logx.Int("unscheduled_tasks", len(res.Suggestions)),
	)
	for _, s := range res.Suggestions {
		a.log.Warn("task not fully scheduled",
			logx.String("task", s.TaskTitle),
			logx.Int("unscheduled_minutes", s.UnscheduledMinutes),
		)
	}

	if a.store != nil {
		if err := a.store.SavePlans(ctx, res.Plans); err != nil {
			a.log.Warn("saving plans failed", logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{
		Type: eventbus.TypePlanGenerated,
		Data: eventbus.PlanGenerated{
			Mode:        string(settings.Mode),
			Days:        len(res.Plans),
			Sessions:    sessions,
			Unscheduled: len(res.Suggestions),
		},
	})
	return nil
}

// Sweep recovers missed sessions and dissolves compromised ones, then
// persists and publishes the outcome.
func (a *App) Sweep(ctx context.Context) error {
	cfg := a.cfgm.Get()
	settings, tasks, commitments, err := planInputs(cfg)
	if err != nil {
		return err
	}

	opts := redistribute.Options{
		Today: a.today(),
		Log:   a.log.With(logx.String("comp", "redistribute")),
	}

	res, err := redistribute.MissedSessions(a.Plans(), tasks, settings, commitments, opts)
	if err != nil {
		return fmt.Errorf("redistribute: %w", err)
	}

	plans := res.Plans
	if !res.RollbackPerformed {
		rep, err := redistribute.RepairCompromised(plans, tasks, settings, commitments, opts)
		if err != nil {
			a.log.Warn("compromised-session repair failed", logx.Err(err))
		} else {
			plans = rep.Plans
			if len(rep.Repaired) > 0 || len(rep.Abandoned) > 0 {
				a.log.Info("compromised sessions processed",
					logx.Int("repaired", len(rep.Repaired)),
					logx.Int("abandoned", len(rep.Abandoned)),
				)
			}
		}
	}

	a.setPlans(plans)
	a.log.Info("sweep finished",
		logx.Int("moved", len(res.Moved)),
		logx.Int("failed", len(res.Failed)),
		logx.Bool("rolled_back", res.RollbackPerformed),
	)

	if a.store != nil {
		if err := a.store.SavePlans(ctx, plans); err != nil {
			a.log.Warn("saving plans failed", logx.Err(err))
		}
		audit := storage.RedistributionAudit{
			At:                time.Now().In(a.loc),
			Moved:             len(res.Moved),
			Failed:            len(res.Failed),
			RollbackPerformed: res.RollbackPerformed,
			Message:           res.Message,
		}
		if len(res.Reasons) > 0 {
			if b, err := json.Marshal(res.Reasons); err == nil {
				audit.ReasonsJSON = string(b)
			}
		}
		if err := a.store.AppendRedistribution(ctx, audit); err != nil {
			a.log.Warn("appending redistribution audit failed", logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{
		Type: eventbus.TypePlanRedistributed,
		Data: eventbus.PlanRedistributed{
			Moved:      len(res.Moved),
			Failed:     len(res.Failed),
			RolledBack: res.RollbackPerformed,
		},
	})
	return nil
}

func planInputs(cfg *Config) (plan.Settings, []plan.Task, []plan.Commitment, error) {
	settings, err := cfg.PlanSettings()
	if err != nil {
		return plan.Settings{}, nil, nil, err
	}
	tasks, err := cfg.PlanTasks()
	if err != nil {
		return plan.Settings{}, nil, nil, err
	}
	commitments, err := cfg.PlanCommitments()
	if err != nil {
		return plan.Settings{}, nil, nil, err
	}
	return settings, tasks, commitments, nil
}
