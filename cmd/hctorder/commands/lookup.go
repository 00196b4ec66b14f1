package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/archive"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

var (
	lookupStrict bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup PARTICIPANT_ID",
	Short: "Show the trial order assigned to a participant",
	Long: `Show the HCT trial order the counterbalancing table assigns to a participant.

The ID may be typed in any form containing the participant number: "7",
"007", "P-007" and "sub7_retest" all name participant 007.

A participant missing from the table is reported as a warning and the command
succeeds; use --strict to exit with an error instead.

Examples:
  hctorder lookup 7
  hctorder lookup P-042 --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupStrict, "strict", false, "Exit with an error when the participant is not in the table")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	raw := args[0]
	id, err := counterbalance.Canonicalize(raw)
	if err != nil {
		return idError(raw, err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tablePath := cfg.Resolve(cfg.Table.Path)
	provider, table, err := loadTable(cfg, tablePath)
	if err != nil {
		return err
	}

	a, err := provider.Resolve(id)
	if err != nil {
		return tableError(err, tablePath)
	}
	if !a.Found() {
		if lookupStrict {
			return printer.Error(
				fmt.Sprintf("participant %s not found", id),
				fmt.Sprintf("The table %s has no row for %s (%d participants).", tablePath, id, table.Len()),
				[]string{"Check the ID with the participant sheet"},
			)
		}
		printer.Warning("Participant %s is not in the counterbalancing table (%d participants)\n", id, table.Len())
		return nil
	}

	printer.Field("Participant", id.String())
	printer.Field("HCT order", a.Format())

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	history, err := archive.Open(ctx, cfg)
	if err != nil {
		logger.Warn("session history unavailable", zap.Error(err))
		return nil
	}
	defer history.Close()

	previous, err := history.ForParticipant(ctx, id.String())
	if err != nil {
		logger.Warn("failed to read participant history", zap.Error(err))
		return nil
	}
	if len(previous) > 0 {
		last := time.UnixMilli(previous[len(previous)-1].GeneratedAtMs).In(cfg.Location())
		printer.Field("Sessions", fmt.Sprintf("%d (last %s)", len(previous), last.Format("2006-01-02 15:04")))
	}
	return nil
}
