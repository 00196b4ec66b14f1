// Package archive records generated sessions so later runs can warn about
// repeat participants and experimenters can review what was produced.
//
// Two backends are provided: a local SQLite file for a single workstation and
// a Redis server shared by several workstations, which also publishes every
// recorded session for live monitoring.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/hctorder/internal/config"
	"github.com/dyluth/hctorder/internal/report"
)

// ErrNotFound is returned by Get when no session has the requested ID.
var ErrNotFound = errors.New("archive: session not found")

// ErrNotPublished is returned by Record when the session was stored but its
// live event could not be sent.
var ErrNotPublished = errors.New("archive: session stored but event not published")

// Entry is one archived session.
type Entry struct {
	SessionID       string   `json:"session_id"`
	ParticipantID   string   `json:"participant_id"`
	HCTOrder        string   `json:"hct_order"`
	Order           [3]int   `json:"order"`
	ExperimentOrder string   `json:"experiment_order"`
	LabNumber       string   `json:"lab_number"`
	Experimenter    string   `json:"experimenter"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	GeneratedAtMs   int64    `json:"generated_at_ms"`
	Host            string   `json:"host,omitempty"`
	Artifacts       []string `json:"artifacts"`
}

// Validate checks the fields every backend indexes on.
func (e *Entry) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if e.ParticipantID == "" {
		return fmt.Errorf("participant_id is required")
	}
	if e.GeneratedAtMs <= 0 {
		return fmt.Errorf("generated_at_ms must be positive")
	}
	return nil
}

// FromRecord builds the archive entry for a synthesized record and the
// locations its artefacts were written to.
func FromRecord(rec report.Record, artifacts []string) *Entry {
	host, _ := os.Hostname()
	if artifacts == nil {
		artifacts = []string{}
	}
	return &Entry{
		SessionID:       rec.SessionID,
		ParticipantID:   rec.ID.String(),
		HCTOrder:        rec.HCTOrder,
		Order:           rec.Order,
		ExperimentOrder: rec.ExperimentOrder,
		LabNumber:       rec.Metadata.LabNumber,
		Experimenter:    rec.Metadata.Experimenter,
		StartTime:       rec.Metadata.StartTime,
		EndTime:         rec.Metadata.EndTime,
		GeneratedAtMs:   rec.GeneratedAt.UnixMilli(),
		Host:            host,
		Artifacts:       artifacts,
	}
}

// Archive stores and queries session entries. Results are ordered by
// GeneratedAtMs, oldest first.
type Archive interface {
	Record(ctx context.Context, e *Entry) error
	Get(ctx context.Context, sessionID string) (*Entry, error)
	List(ctx context.Context, c *Criteria) ([]*Entry, error)
	ForParticipant(ctx context.Context, participantID string) ([]*Entry, error)
	Close() error
}

// Nop is the archive used when history is disabled. It records nothing and
// finds nothing.
type Nop struct{}

func (Nop) Record(context.Context, *Entry) error { return nil }

func (Nop) Get(context.Context, string) (*Entry, error) { return nil, ErrNotFound }

func (Nop) List(context.Context, *Criteria) ([]*Entry, error) { return nil, nil }

func (Nop) ForParticipant(context.Context, string) ([]*Entry, error) { return nil, nil }

func (Nop) Close() error { return nil }

// Open returns the archive selected by cfg.Archive.
func Open(ctx context.Context, cfg *config.Config) (Archive, error) {
	switch cfg.Archive.Driver {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Resolve(cfg.Archive.SQLitePath))
	case "redis":
		if cfg.Archive.Redis == nil {
			return nil, fmt.Errorf("archive.redis section required for redis driver")
		}
		return OpenRedis(ctx, cfg.Archive.Redis.URL, cfg.Archive.Redis.Instance)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Archive.Driver)
	}
}
