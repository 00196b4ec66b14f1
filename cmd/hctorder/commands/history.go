package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/hctorder/internal/archive"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/internal/resolver"
	"github.com/dyluth/hctorder/internal/timespec"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

var (
	historyOutputFormat string
	historySince        string
	historyUntil        string
	historyParticipant  string
	historyExperimenter string
	historyLab          string
)

var historyCmd = &cobra.Command{
	Use:   "history [SESSION_ID]",
	Short: "List generated sessions with filtering",
	Long: `Inspect the session history in list or get mode.

List Mode (no SESSION_ID):
  Displays sessions matching filters as a table or JSONL stream, oldest first.

Get Mode (with SESSION_ID):
  Displays complete details of a single session as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a9c" instead of the full UUID).

Output Formats (list mode only):
  default - Human-readable table
  jsonl   - Line-delimited JSON, one session per line

Time Filters (list mode only):
  --since  - Show sessions generated after this time
  --until  - Show sessions generated before this time

Content Filters (list mode only):
  --participant  - Participant ID (any form, e.g. 7 or P-007)
  --experimenter - Experimenter name (glob pattern: "Ana*")
  --lab          - Lab number (exact match)

Requires archive.driver 'sqlite' or 'redis' in hctorder.yml.

Examples:
  # Sessions run today
  hctorder history --since 00:00

  # Everything Ana ran in lab 4 as JSONL
  hctorder history --experimenter "Ana*" --lab 4 -o jsonl | jq .participant_id`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	historyCmd.Flags().StringVar(&historySince, "since", "", "Show sessions after time (duration, clock time or RFC3339)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Show sessions before time (duration, clock time or RFC3339)")

	historyCmd.Flags().StringVar(&historyParticipant, "participant", "", "Filter by participant ID")
	historyCmd.Flags().StringVar(&historyExperimenter, "experimenter", "", "Filter by experimenter (glob pattern)")
	historyCmd.Flags().StringVar(&historyLab, "lab", "", "Filter by lab number (exact match)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	isGetMode := len(args) > 0

	if !isGetMode && historyOutputFormat != "default" && historyOutputFormat != "jsonl" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", historyOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Archive.Driver == "none" {
		return printer.Error(
			"session history is disabled",
			"archive.driver is 'none', so no sessions have been recorded.",
			[]string{"Enable a history backend in hctorder.yml:\n  archive:\n    driver: sqlite"},
		)
	}

	history, err := archive.Open(ctx, cfg)
	if err != nil {
		return printer.ErrorWithContext(
			"session history unavailable",
			err.Error(),
			map[string]string{"Driver": cfg.Archive.Driver},
			nil,
		)
	}
	defer history.Close()

	if isGetMode {
		shortID := args[0]
		fullID, err := resolver.ResolveSessionID(ctx, history, shortID)
		if err != nil {
			var amb *resolver.AmbiguousError
			switch {
			case resolver.IsNotFoundError(err):
				return printer.Error(
					fmt.Sprintf("session '%s' not found", shortID),
					"No session with this ID has been recorded.",
					[]string{"List recorded sessions:\n  hctorder history"},
				)
			case errors.As(err, &amb):
				return printer.Error("ambiguous session ID", resolver.FormatAmbiguousError(amb), nil)
			}
			return printer.Error("invalid session ID", err.Error(), nil)
		}

		e, err := history.Get(ctx, fullID)
		if err != nil {
			return fmt.Errorf("failed to read session: %w", err)
		}
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal session to JSON: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	criteria, err := historyCriteria(cfg.Location())
	if err != nil {
		return err
	}

	entries, err := history.List(ctx, criteria)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if historyOutputFormat == "jsonl" {
		return archive.FormatJSONL(printer.Stdout(), entries)
	}
	if len(entries) == 0 {
		if criteria.HasFilters() {
			printer.Info("No sessions match the filters\n")
		} else {
			printer.Info("No sessions recorded yet\n")
		}
		return nil
	}
	archive.FormatTable(printer.Stdout(), entries, cfg.Location())
	return nil
}

func historyCriteria(loc *time.Location) (*archive.Criteria, error) {
	since, until, err := timespec.New(time.Now, loc).ParseRange(historySince, historyUntil)
	if err != nil {
		return nil, printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{`Use a duration ("2h"), a clock time ("09:30"), "2026-10-14 09:30" or RFC3339`},
		)
	}

	criteria := &archive.Criteria{
		SinceTimestampMs: since,
		UntilTimestampMs: until,
		ExperimenterGlob: historyExperimenter,
		LabNumber:        historyLab,
	}
	if historyParticipant != "" {
		id, err := counterbalance.Canonicalize(historyParticipant)
		if err != nil {
			return nil, idError(historyParticipant, err)
		}
		criteria.ParticipantID = id.String()
	}
	return criteria, nil
}
