package config

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	logx "planweave/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging, and (3) whether the planning
// inputs changed (settings/tasks/commitments/planner), which is the
// signal to regenerate.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)
	planChanged := false

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.throttle_enabled", newCfg.Logging.Throttle.Enabled),
		)
	}

	// Planner
	if oldCfg.Planner != newCfg.Planner {
		changed = append(changed, "planner")
		planChanged = true
		attrs = append(attrs,
			logx.String("planner.mode", strings.TrimSpace(newCfg.Planner.Mode)),
			logx.Int("planner.horizon_days", newCfg.Planner.HorizonDays),
			logx.String("planner.timezone", strings.TrimSpace(newCfg.Planner.Timezone)),
		)
	}

	// Serve (cron triggers). Nil means disabled.
	oldSrv := derefServe(oldCfg.Serve)
	newSrv := derefServe(newCfg.Serve)
	if oldSrv != newSrv {
		changed = append(changed, "serve")
		attrs = append(attrs,
			logx.Bool("serve.enabled", newSrv.Enabled),
			logx.String("serve.regenerate_cron", strings.TrimSpace(newSrv.RegenerateCron)),
			logx.String("serve.sweep_cron", strings.TrimSpace(newSrv.SweepCron)),
		)
	}

	// Storage (persistence). Nil means disabled; never log full paths
	// beyond whether they are set.
	oldSt := derefStorage(oldCfg.Storage)
	newSt := derefStorage(newCfg.Storage)
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newSt.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newSt.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newSt.BusyTimeout)),
		)
	}

	// Settings
	if !reflect.DeepEqual(oldCfg.Settings, newCfg.Settings) {
		changed = append(changed, "settings")
		planChanged = true
		attrs = append(attrs,
			logx.Float64("settings.daily_hours", newCfg.Settings.DailyAvailableHours),
			logx.Int("settings.window_start", newCfg.Settings.WindowStartHour),
			logx.Int("settings.window_end", newCfg.Settings.WindowEndHour),
			logx.Int("settings.work_day_count", len(newCfg.Settings.WorkDays)),
		)
	}

	// Tasks and commitments: summarize counts, details at debug.
	if taskIDs := diffByHash(taskHashes(oldCfg.Tasks), taskHashes(newCfg.Tasks)); len(taskIDs) > 0 {
		changed = append(changed, "tasks")
		planChanged = true
		attrs = append(attrs,
			logx.Int("tasks.changed_count", len(taskIDs)),
			logx.Int("tasks.total", len(newCfg.Tasks)),
		)
	}
	if ids := diffByHash(commitmentHashes(oldCfg.Commitments), commitmentHashes(newCfg.Commitments)); len(ids) > 0 {
		changed = append(changed, "commitments")
		planChanged = true
		attrs = append(attrs,
			logx.Int("commitments.changed_count", len(ids)),
			logx.Int("commitments.total", len(newCfg.Commitments)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, planChanged
}

func derefServe(s *ServeConfig) ServeConfig {
	if s == nil {
		return ServeConfig{}
	}
	return *s
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func taskHashes(tasks []TaskConfig) map[string]uint64 {
	out := make(map[string]uint64, len(tasks))
	for i, t := range tasks {
		key := t.ID
		if key == "" {
			key = t.Title
		}
		if key == "" {
			key = strconv.Itoa(i)
		}
		b, _ := json.Marshal(t)
		out[key] = hashBytes(b)
	}
	return out
}

func commitmentHashes(commitments []CommitmentConfig) map[string]uint64 {
	out := make(map[string]uint64, len(commitments))
	for _, c := range commitments {
		key := c.ID
		if key == "" {
			key = c.Title
		}
		b, _ := json.Marshal(c)
		out[key] = hashBytes(b)
	}
	return out
}

func diffByHash(oldM, newM map[string]uint64) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for key := range set {
		o, oOK := oldM[key]
		n, nOK := newM[key]
		if oOK != nOK || o != n {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
