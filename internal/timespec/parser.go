package timespec

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wall-clock form written into session records.
const Layout = "2006-01-02 15:04"

// Parser resolves time specifications against a clock and location.
// The zero value uses time.Now and time.Local.
type Parser struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a Parser bound to now and loc. Nil arguments fall back to
// time.Now and time.Local.
func New(now func() time.Time, loc *time.Location) *Parser {
	return &Parser{Now: now, Location: loc}
}

func (p *Parser) now() time.Time {
	if p == nil || p.Now == nil {
		return time.Now().In(p.location())
	}
	return p.Now().In(p.location())
}

func (p *Parser) location() *time.Location {
	if p == nil || p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Time parses a time specification. Supported formats:
//   - "now"
//   - Go duration format: "1h", "30m", "1h30m" (that long ago)
//   - Clock time today: "09:30"
//   - Local date and time: "2026-10-14 09:30" or "2026-10-14T09:30"
//   - RFC3339 timestamps: "2026-10-14T09:30:00Z"
func (p *Parser) Time(spec string) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if strings.EqualFold(spec, "now") {
		return p.now(), nil
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.In(p.location()), nil
	}

	for _, layout := range []string{Layout, "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, spec, p.location()); err == nil {
			return t, nil
		}
	}

	if clock, err := time.ParseInLocation("15:04", spec, p.location()); err == nil {
		now := p.now()
		return time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, p.location()), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
		}
		return p.now().Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use 'now', a duration like '45m', a clock time like '09:30', or '2026-10-14 09:30')", spec)
}

// Parse returns the specification as a Unix timestamp in milliseconds.
func (p *Parser) Parse(spec string) (int64, error) {
	t, err := p.Time(spec)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// Format parses spec and renders it with Layout. An empty spec yields an
// empty string so optional fields stay blank.
func (p *Parser) Format(spec string) (string, error) {
	if strings.TrimSpace(spec) == "" {
		return "", nil
	}
	t, err := p.Time(spec)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// ParseRange parses both --since and --until flags into a time range.
// Returns (sinceTimestampMs, untilTimestampMs, error).
// Zero values indicate "no bound" for that end of the range.
//
// Validates that since < until if both are specified.
func (p *Parser) ParseRange(since, until string) (int64, int64, error) {
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		sinceMS, err = p.Parse(since)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilMS, err = p.Parse(until)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, nil
}

// Parse parses spec against the wall clock in the local time zone.
func Parse(spec string) (int64, error) {
	return (*Parser)(nil).Parse(spec)
}

// ParseRange parses a --since/--until pair against the wall clock.
func ParseRange(since, until string) (int64, int64, error) {
	return (*Parser)(nil).ParseRange(since, until)
}
