package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planweave/internal/app"
	"planweave/internal/config"
	"planweave/internal/feasibility"
	"planweave/internal/plan"
	"planweave/internal/redistribute"
	"planweave/internal/storage"
	logx "planweave/pkg/logx"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: planner <command> [flags]

commands:
  generate      build a plan from the config file and print it
  redistribute  recover missed sessions in the stored plan
  check         run feasibility checks for every pending task
  serve         run continuously (config watch + cron triggers)

common flags:
  -config path  config file (default ./planweave.yaml)
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "./planweave.yaml", "path to config file (json or yaml)")
	asJSON := fs.Bool("json", false, "print results as JSON")
	_ = fs.Parse(os.Args[2:])

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(*cfgPath, *asJSON)
	case "redistribute":
		err = runRedistribute(*cfgPath, *asJSON)
	case "check":
		err = runCheck(*cfgPath, *asJSON)
	case "serve":
		err = runServe(*cfgPath)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func loadInputs(cfgPath string) (*config.Config, plan.Settings, []plan.Task, []plan.Commitment, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, plan.Settings{}, nil, nil, err
	}
	settings, err := cfg.PlanSettings()
	if err != nil {
		return nil, plan.Settings{}, nil, nil, err
	}
	tasks, err := cfg.PlanTasks()
	if err != nil {
		return nil, plan.Settings{}, nil, nil, err
	}
	commitments, err := cfg.PlanCommitments()
	if err != nil {
		return nil, plan.Settings{}, nil, nil, err
	}
	return cfg, settings, tasks, commitments, nil
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy := time.Duration(0)
	if cfg.Storage.BusyTimeout != "" {
		d, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		busy = d
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log)
}

func today(cfg *config.Config) (string, error) {
	loc := time.Local
	if tz := cfg.Planner.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("planner.timezone: %w", err)
		}
		loc = l
	}
	return plan.FormatDate(time.Now().In(loc)), nil
}

func runGenerate(cfgPath string, asJSON bool) error {
	cfg, settings, tasks, commitments, err := loadInputs(cfgPath)
	if err != nil {
		return err
	}
	log := logx.NewConsole(cfg.Logging.Level)

	day, err := today(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var existing plan.PlanSet
	if store != nil {
		if set, ok, err := store.LoadPlans(ctx); err != nil {
			return err
		} else if ok {
			existing = set
		}
	}

	res, err := plan.GenerateWithPreservation(tasks, settings, commitments, existing, plan.Options{
		Today:       day,
		Log:         log,
		HorizonDays: cfg.Planner.HorizonDays,
	})
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.SavePlans(ctx, res.Plans); err != nil {
			return err
		}
	}

	if asJSON {
		return printJSON(res)
	}
	printPlans(res.Plans)
	for _, s := range res.Suggestions {
		fmt.Printf("! %s: %dm could not be scheduled\n", s.TaskTitle, s.UnscheduledMinutes)
	}
	return nil
}

func runRedistribute(cfgPath string, asJSON bool) error {
	cfg, settings, tasks, commitments, err := loadInputs(cfgPath)
	if err != nil {
		return err
	}
	log := logx.NewConsole(cfg.Logging.Level)

	day, err := today(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("redistribute needs a configured storage section")
	}
	defer store.Close()

	plans, ok, err := store.LoadPlans(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no stored plan; run generate first")
	}

	opts := redistribute.Options{Today: day, Log: log}
	res, err := redistribute.MissedSessions(plans, tasks, settings, commitments, opts)
	if err != nil {
		return err
	}
	out := res.Plans
	if !res.RollbackPerformed {
		if rep, err := redistribute.RepairCompromised(out, tasks, settings, commitments, opts); err == nil {
			out = rep.Plans
		}
	}

	if err := store.SavePlans(ctx, out); err != nil {
		return err
	}
	audit := storage.RedistributionAudit{
		At:                time.Now(),
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
	if err := store.AppendRedistribution(ctx, audit); err != nil {
		return err
	}

	if asJSON {
		return printJSON(res)
	}
	fmt.Printf("moved=%d failed=%d rolled_back=%v\n", len(res.Moved), len(res.Failed), res.RollbackPerformed)
	for _, m := range res.Moved {
		fmt.Printf("  %s: %s -> %s %s-%s\n", m.TaskID, m.FromDate, m.ToDate, m.NewStart, m.NewEnd)
	}
	for _, f := range res.Failed {
		fmt.Printf("  %s: %s (%s)\n", f.TaskID, f.Date, f.Reason)
	}
	return nil
}

func runCheck(cfgPath string, asJSON bool) error {
	cfg, settings, tasks, commitments, err := loadInputs(cfgPath)
	if err != nil {
		return err
	}
	log := logx.NewConsole(cfg.Logging.Level)

	day, err := today(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var plans plan.PlanSet
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if set, ok, err := store.LoadPlans(ctx); err == nil && ok {
			plans = set
		}
	}

	type checked struct {
		Task   string             `json:"task"`
		Report feasibility.Report `json:"report"`
	}
	var reports []checked
	anyInvalid := false
	for _, t := range tasks {
		if t.Status != plan.TaskPending {
			continue
		}
		rep, err := feasibility.Check(t, settings, tasks, plans, commitments, feasibility.Options{Today: day, Log: log})
		if err != nil {
			return err
		}
		if !rep.IsValid {
			anyInvalid = true
		}
		reports = append(reports, checked{Task: t.Title, Report: rep})
	}

	if asJSON {
		if err := printJSON(reports); err != nil {
			return err
		}
	} else {
		for _, c := range reports {
			status := "ok"
			if !c.Report.IsValid {
				status = "NOT FEASIBLE"
			}
			fmt.Printf("%s: %s\n", c.Task, status)
			for _, w := range c.Report.Warnings {
				fmt.Printf("  [%s/%s] %s\n", w.Type, w.Severity, w.Message)
			}
		}
	}
	if anyInvalid {
		os.Exit(1)
	}
	return nil
}

func runServe(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	reason := app.StopSIGTERM
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	return a.Err()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlans(set plan.PlanSet) {
	for _, date := range set.Dates() {
		dp := set[date]
		fmt.Printf("%s (%.1fh of %.1fh)\n", date, dp.TotalHours, dp.AvailableHours)
		for _, s := range dp.Sessions {
			fmt.Printf("  %s-%s %s #%d %.2fh [%s]\n", s.Start, s.End, s.TaskID, s.Number, s.AllocatedHours, s.Status)
		}
	}
}
