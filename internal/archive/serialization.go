package archive

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between entries and Redis hashes.
// Scalar fields map to hash fields; the order triple and artefact list are
// JSON-encoded into single fields.

// EntryToHash converts an Entry to a Redis hash.
func EntryToHash(e *Entry) (map[string]interface{}, error) {
	orderJSON, err := json.Marshal(e.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}
	artifacts := e.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	return map[string]interface{}{
		"session_id":       e.SessionID,
		"participant_id":   e.ParticipantID,
		"hct_order":        e.HCTOrder,
		"order":            string(orderJSON),
		"experiment_order": e.ExperimentOrder,
		"lab_number":       e.LabNumber,
		"experimenter":     e.Experimenter,
		"start_time":       e.StartTime,
		"end_time":         e.EndTime,
		"generated_at_ms":  e.GeneratedAtMs,
		"host":             e.Host,
		"artifacts":        string(artifactsJSON),
	}, nil
}

// HashToEntry converts a Redis hash back to an Entry.
func HashToEntry(hash map[string]string) (*Entry, error) {
	generatedAtMs, err := strconv.ParseInt(hash["generated_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid generated_at_ms field: %w", err)
	}

	var order [3]int
	if orderJSON := hash["order"]; orderJSON != "" {
		if err := json.Unmarshal([]byte(orderJSON), &order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
	}

	artifacts := []string{}
	if artifactsJSON := hash["artifacts"]; artifactsJSON != "" {
		if err := json.Unmarshal([]byte(artifactsJSON), &artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}

	return &Entry{
		SessionID:       hash["session_id"],
		ParticipantID:   hash["participant_id"],
		HCTOrder:        hash["hct_order"],
		Order:           order,
		ExperimentOrder: hash["experiment_order"],
		LabNumber:       hash["lab_number"],
		Experimenter:    hash["experimenter"],
		StartTime:       hash["start_time"],
		EndTime:         hash["end_time"],
		GeneratedAtMs:   generatedAtMs,
		Host:            hash["host"],
		Artifacts:       artifacts,
	}, nil
}
