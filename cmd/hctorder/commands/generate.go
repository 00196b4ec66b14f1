package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/hctorder/internal/archive"
	"github.com/dyluth/hctorder/internal/blob"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/internal/report"
	"github.com/dyluth/hctorder/internal/session"
	"github.com/dyluth/hctorder/internal/timespec"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

var (
	generateID           string
	generateLab          string
	generateExperimenter string
	generateStart        string
	generateEnd          string
	generateTemplate     string
	generateNoTemplate   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the session record and report for a participant",
	Long: `Resolve the participant's HCT trial order and write the session artefacts:

  <id>/<id>_<timestamp>.csv          one-row session record (UTF-8 with BOM)
  <id>/<id>_<timestamp>_params.yml   report parameters for the renderer
  <id>/<id>_<timestamp>.Rmd          editable report (when a template is configured)

Artefacts go to output.dir, or the configured S3 bucket. Either all of them
are written or none is. The session is then recorded in the history archive,
and a warning is shown if the participant already has sessions.

Start and end accept "now", a duration ago ("45m"), a clock time today
("09:30"), "2026-10-14 09:30" or RFC3339, and are written as
"2026-10-14 09:30" in the configured time zone.

Examples:
  hctorder generate --id 7 --lab 4 --experimenter "Ana Lopez" --start 09:00 --end now
  hctorder generate --id P-012 --experimenter "Sam Okafor" --no-template`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateID, "id", "", "Participant ID (required)")
	generateCmd.Flags().StringVar(&generateLab, "lab", "", "Lab number (default experiment.lab_number)")
	generateCmd.Flags().StringVar(&generateExperimenter, "experimenter", "", "Experimenter name")
	generateCmd.Flags().StringVar(&generateStart, "start", "", "Session start time")
	generateCmd.Flags().StringVar(&generateEnd, "end", "", "Session end time")
	generateCmd.Flags().StringVar(&generateTemplate, "template", "", "Report template (default template.path)")
	generateCmd.Flags().BoolVar(&generateNoTemplate, "no-template", false, "Do not write the editable report")
	_ = generateCmd.MarkFlagRequired("id")
	generateCmd.MarkFlagsMutuallyExclusive("template", "no-template")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if _, err := counterbalance.Canonicalize(generateID); err != nil {
		return idError(generateID, err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	times := timespec.New(time.Now, cfg.Location())
	start, err := times.Format(generateStart)
	if err != nil {
		return printer.Error("invalid --start", err.Error(), []string{`Use "now", "45m", "09:30" or "2026-10-14 09:30"`})
	}
	end, err := times.Format(generateEnd)
	if err != nil {
		return printer.Error("invalid --end", err.Error(), []string{`Use "now", "45m", "09:30" or "2026-10-14 09:30"`})
	}
	lab := generateLab
	if lab == "" {
		lab = cfg.Experiment.LabNumber
	}

	tablePath := cfg.Resolve(cfg.Table.Path)
	provider, _, err := loadTable(cfg, tablePath)
	if err != nil {
		return err
	}

	var tmpl *report.Template
	if !generateNoTemplate {
		templatePath := generateTemplate
		if templatePath == "" {
			templatePath = cfg.Resolve(cfg.Template.Path)
		}
		if tmpl, err = loadTemplate(templatePath); err != nil {
			return err
		}
	}

	store, err := blob.Open(ctx, cfg)
	if err != nil {
		return printer.ErrorWithContext(
			"output store unavailable",
			err.Error(),
			map[string]string{"Driver": cfg.Output.Driver},
			[]string{"Check the output section of hctorder.yml"},
		)
	}

	history, err := archive.Open(ctx, cfg)
	if err != nil {
		printer.Warning("Session history unavailable, this session will not be recorded: %v\n", err)
		history = archive.Nop{}
	}
	defer history.Close()

	svc := session.New(provider, store,
		session.WithTemplate(tmpl),
		session.WithArchive(history),
		session.WithLocation(cfg.Location()),
		session.WithLogger(logger),
		session.WithExperimentOrder(cfg.Experiment.OrderLabel),
		session.WithDateLayout(cfg.Template.DateLayout),
	)

	res, err := svc.Generate(ctx, session.Request{
		RawID: generateID,
		Metadata: report.Metadata{
			LabNumber:    lab,
			Experimenter: generateExperimenter,
			StartTime:    start,
			EndTime:      end,
		},
	})
	if err != nil {
		if errors.Is(err, blob.ErrExists) {
			return printer.Error(
				"session artefacts already exist",
				err.Error(),
				[]string{"Wait a second and run the command again"},
			)
		}
		return printer.Error("failed to generate session", err.Error(), nil)
	}

	if !res.Found() {
		return printer.Error(
			fmt.Sprintf("participant %s not found", res.ID),
			fmt.Sprintf("The table %s has no row for %s. Nothing was written.", tablePath, res.ID),
			[]string{
				"Check the ID with the participant sheet",
				fmt.Sprintf("Confirm the table contents:\n  hctorder check --table %s", tablePath),
			},
		)
	}

	printSession(res, cfg.Archive.Driver != "none")
	return nil
}

func printSession(res *session.Result, archiving bool) {
	rec := res.Record
	printer.Success("Session generated for participant %s\n\n", rec.ID)
	printer.Field("HCT order", rec.HCTOrder)
	printer.Field("Session", rec.SessionID)
	printer.Field("Generated", rec.Timestamp())
	printer.Println()
	for _, art := range res.Artifacts {
		printer.Printf("  ✓ %s\n", art.Info.Location)
	}

	if len(res.Previous) > 0 {
		stamps := make([]string, len(res.Previous))
		for i, e := range res.Previous {
			stamps[i] = time.UnixMilli(e.GeneratedAtMs).In(rec.GeneratedAt.Location()).Format("2006-01-02 15:04")
		}
		printer.Println()
		printer.Warning("Participant %s already has %d session(s): %s\n", rec.ID, len(res.Previous), strings.Join(stamps, ", "))
	}
	if archiving && !res.Archived {
		printer.Println()
		printer.Warning("The session was written but could not be recorded in the history\n")
	}
}
