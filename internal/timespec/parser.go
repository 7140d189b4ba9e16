// Package timespec parses the --since/--until values accepted by
// `warren session list`.
package timespec

import (
	"fmt"
	"time"
)

// Range is an inclusive window over millisecond timestamps. A zero bound is
// open.
type Range struct {
	SinceMs int64
	UntilMs int64
}

// Contains reports whether ms falls inside the range.
func (r Range) Contains(ms int64) bool {
	if r.SinceMs > 0 && ms < r.SinceMs {
		return false
	}
	if r.UntilMs > 0 && ms > r.UntilMs {
		return false
	}
	return true
}

// Parse turns a Go duration ("90m", counted back from now) or an RFC3339
// timestamp into Unix milliseconds.
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '1h30m' or RFC3339 like '2026-01-02T15:04:05Z')", spec)
}

// ParseRange parses both flags. Either may be empty.
func ParseRange(since, until string, now time.Time) (Range, error) {
	var (
		r   Range
		err error
	)
	if since != "" {
		if r.SinceMs, err = Parse(since, now); err != nil {
			return Range{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if r.UntilMs, err = Parse(until, now); err != nil {
			return Range{}, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if r.SinceMs > 0 && r.UntilMs > 0 && r.SinceMs >= r.UntilMs {
		return Range{}, fmt.Errorf("--since must be before --until")
	}
	return r, nil
}
