package bio

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when the update loop runs next.
//
// Supported spec forms:
//   - Plain integer: minutes between updates ("60"); "0" means no delay
//     between iterations (used for rapid test cycles)
//   - Go duration: "30m", "2h30m"
//   - HH:MM interval: "02:30" (2 hours 30 minutes)
//   - Cron (crontab.guru-style): "*/30 * * * *", "@hourly"
type Schedule struct {
	every time.Duration
	cron  cron.Schedule
	spec  string
}

var (
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	reHHMM     = regexp.MustCompile(`^\d{1,3}:\d{2}$`)
)

func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		cs, err := cronParser.Parse(s)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", raw, err)
		}
		return Schedule{cron: cs, spec: s}, nil
	}

	if reHHMM.MatchString(s) {
		parts := strings.SplitN(s, ":", 2)
		hh, _ := strconv.Atoi(parts[0])
		mm, _ := strconv.Atoi(parts[1])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", raw)
		}
		return Schedule{every: time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, spec: s}, nil
	}

	// Bare integer: minutes.
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return Schedule{}, fmt.Errorf("interval minutes must be >= 0")
		}
		return Schedule{every: time.Duration(n) * time.Minute, spec: s}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return Schedule{}, fmt.Errorf("interval must be >= 0")
		}
		return Schedule{every: d, spec: s}, nil
	}

	return Schedule{}, fmt.Errorf(
		"invalid schedule %q (use minutes like '60', a duration like '30m', HH:MM, or cron like '*/30 * * * *')",
		raw,
	)
}

// Next returns when the loop should run after now. For interval schedules
// this is simply now+interval; a zero interval returns now unchanged.
func (s Schedule) Next(now time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(now)
	}
	return now.Add(s.every)
}

func (s Schedule) String() string { return s.spec }
