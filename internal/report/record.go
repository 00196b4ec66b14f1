// Package report turns a resolved counterbalancing assignment and the session
// details entered by the experimenter into the artefacts handed to downstream
// tools: a one-row CSV record, a template parameter set, and optionally an
// editable copy of the report template with those parameters in its front matter.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/hctorder/pkg/counterbalance"
)

// DefaultExperimentOrder is the experiment order label used when none is configured.
const DefaultExperimentOrder = "Baseline → HCT → Questionnaires"

// TimestampLayout formats GeneratedAt in every rendering.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrSynthesisPrecondition is returned when synthesis is attempted without a found assignment.
var ErrSynthesisPrecondition = errors.New("report: assignment not found; resolve the participant before synthesizing")

// Metadata is the free text entered for a session. Values are stored as typed;
// escaping happens only when building template parameters.
type Metadata struct {
	LabNumber    string `json:"lab_number" yaml:"lab_number"`
	Experimenter string `json:"experimenter" yaml:"experimenter"`
	StartTime    string `json:"start_time" yaml:"start_time"`
	EndTime      string `json:"end_time" yaml:"end_time"`
}

// Record is the canonical description of one generated session.
type Record struct {
	SessionID       string                     `json:"session_id"`
	ID              counterbalance.CanonicalID `json:"id"`
	ExperimentOrder string                     `json:"experiment_order"`
	Order           [3]int                     `json:"order"`
	HCTOrder        string                     `json:"hct_order"`
	Metadata        Metadata                   `json:"metadata"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// Timestamp returns GeneratedAt formatted with TimestampLayout.
func (r Record) Timestamp() string {
	return r.GeneratedAt.Format(TimestampLayout)
}

type synthOptions struct {
	experimentOrder string
	newID           func() string
}

// Option configures Synthesize.
type Option func(*synthOptions)

// WithExperimentOrder overrides DefaultExperimentOrder. Empty keeps the default.
func WithExperimentOrder(label string) Option {
	return func(o *synthOptions) {
		if label != "" {
			o.experimentOrder = label
		}
	}
}

// WithSessionIDs replaces the session ID generator (uuid v4 by default).
func WithSessionIDs(next func() string) Option {
	return func(o *synthOptions) {
		if next != nil {
			o.newID = next
		}
	}
}

// Synthesize builds the Record for a found assignment. generatedAt is supplied
// by the caller so the result is deterministic for a given clock.
func Synthesize(a counterbalance.Assignment, md Metadata, generatedAt time.Time, opts ...Option) (Record, error) {
	if !a.Found() {
		return Record{}, ErrSynthesisPrecondition
	}
	o := synthOptions{
		experimentOrder: DefaultExperimentOrder,
		newID:           func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	return Record{
		SessionID:       o.newID(),
		ID:              a.ID(),
		ExperimentOrder: o.experimentOrder,
		Order:           a.Order(),
		HCTOrder:        a.Format(),
		Metadata:        md,
		GeneratedAt:     generatedAt,
	}, nil
}
