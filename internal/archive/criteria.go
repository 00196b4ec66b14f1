package archive

import (
	"path/filepath"
)

// Criteria defines filtering criteria for archived sessions.
// All filters are ANDed together - an entry must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	ParticipantID    string // Exact canonical ID, empty = no filter
	ExperimenterGlob string // Glob pattern for experimenter, empty = no filter
	LabNumber        string // Exact match, empty = no filter
}

// Matches returns true if the entry matches all filter criteria.
// A nil Criteria matches everything.
func (c *Criteria) Matches(e *Entry) bool {
	if c == nil {
		return true
	}
	if c.SinceTimestampMs > 0 && e.GeneratedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.GeneratedAtMs > c.UntilTimestampMs {
		return false
	}
	if c.ParticipantID != "" && e.ParticipantID != c.ParticipantID {
		return false
	}
	if c.ExperimenterGlob != "" {
		matched, err := filepath.Match(c.ExperimenterGlob, e.Experimenter)
		if err != nil || !matched {
			return false
		}
	}
	if c.LabNumber != "" && e.LabNumber != c.LabNumber {
		return false
	}
	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c != nil && (c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.ParticipantID != "" ||
		c.ExperimenterGlob != "" ||
		c.LabNumber != "")
}

// filter keeps the entries matching c, preserving order.
func filter(entries []*Entry, c *Criteria) []*Entry {
	if !c.HasFilters() {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if c.Matches(e) {
			kept = append(kept, e)
		}
	}
	return kept
}
