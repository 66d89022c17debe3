// Package datekey converts date-like input into canonical day keys in the
// business timezone.
package datekey

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashbook/internal/core"
)

// DefaultTimezone is the business timezone used when none is configured.
const DefaultTimezone = "Africa/Lagos"

// Zone-less layouts are read as wall-clock time in the business timezone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
}

type Canonicalizer struct {
	loc *time.Location
	now func() time.Time
}

// New returns a canonicalizer for loc. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Canonicalizer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Canonicalizer{loc: loc, now: now}
}

// LoadLocation resolves a timezone name. The default zone falls back to a
// fixed UTC+1 offset when the tz database is unavailable.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == DefaultTimezone {
		slog.Warn("Timezone database unavailable, using fixed offset", "timezone", name, "error", err)
		return time.FixedZone("WAT", 60*60), nil
	}
	return nil, fmt.Errorf("load timezone %q: %w", name, err)
}

func (c *Canonicalizer) Location() *time.Location { return c.loc }

// Canonicalize maps input to a YYYY-MM-DD key. Canonical keys pass through
// unchanged; anything unparseable yields core.ErrInvalidDate.
func (c *Canonicalizer) Canonicalize(input string) (core.DateKey, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", core.ErrInvalidDate)
	}
	switch strings.ToLower(s) {
	case "now", "today":
		return c.Today(), nil
	}
	if len(s) == len(core.DateLayout) {
		return core.ParseDateKey(s)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return c.FromTime(t), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return c.FromTime(t), nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidDate, input)
}

// FromTime returns the business-zone day containing t.
func (c *Canonicalizer) FromTime(t time.Time) core.DateKey {
	return core.DateKey(t.In(c.loc).Format(core.DateLayout))
}

func (c *Canonicalizer) Today() core.DateKey {
	return c.FromTime(c.now())
}
