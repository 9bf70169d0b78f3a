// Package schedule parses a job's cron expression and answers "is it due"
// and "when next" — the contract a scheduling front-end consumes. It does
// not run a daemon: nothing in this package starts a goroutine or fires a
// job unattended. A front-end (cmd/amberd's optional --enable-scheduler
// loop, a cron(8) entry, a tray app) is responsible for calling IsDue
// periodically and invoking the SnapshotRunner itself.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// parser accepts the standard 5-field cron syntax plus the "@every"/"@daily"
// style descriptors, matching what operators expect from a cron expression
// without requiring the non-standard seconds field some cron libraries add.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a job's parsed recurring-run configuration.
type Schedule struct {
	Enabled    bool
	Cron       string
	RunOnMount bool

	expr cron.Schedule
}

// Parse validates and parses a job's cron expression. cronExpr may be empty
// when enabled is false; a disabled schedule with no expression never needs
// to be evaluated.
func Parse(enabled bool, cronExpr string, runOnMount bool) (Schedule, error) {
	s := Schedule{Enabled: enabled, Cron: cronExpr, RunOnMount: runOnMount}
	if !enabled || cronExpr == "" {
		return s, nil
	}
	expr, err := parser.Parse(cronExpr)
	if err != nil {
		return Schedule{}, amberr.Wrap(amberr.KindScheduler, "invalid cron expression", err)
	}
	s.expr = expr
	return s, nil
}

// IsDue reports whether the schedule should fire at or before now, given
// the timestamp of its last run. A zero lastRun is treated as "never run",
// which is always due once enabled.
func (s Schedule) IsDue(lastRun time.Time, now time.Time) bool {
	if !s.Enabled || s.expr == nil {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	return !s.expr.Next(lastRun).After(now)
}

// NextRun returns the next scheduled run time after the given time. The
// zero time is returned when the schedule is disabled or unparsed.
func (s Schedule) NextRun(after time.Time) time.Time {
	if !s.Enabled || s.expr == nil {
		return time.Time{}
	}
	return s.expr.Next(after)
}
