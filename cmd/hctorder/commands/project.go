package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/config"
	"github.com/dyluth/hctorder/internal/logging"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/internal/report"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

// configFile returns the configuration path and whether the user named it.
func configFile(cmd *cobra.Command) (string, bool) {
	if cmd.Flags().Changed("config") {
		return configPath, true
	}
	if p := os.Getenv(config.EnvConfig); p != "" {
		return p, true
	}
	return config.DefaultFile, false
}

// loadConfig reads the project configuration. A missing default file yields
// the built-in defaults; a missing file the user asked for is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, explicit := configFile(cmd)
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Debug("no configuration file, using defaults", zap.String("path", path))
			return config.Default(), nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"configuration error",
			err.Error(),
			map[string]string{"Config": path},
			[]string{
				fmt.Sprintf("Fix the file:\n  %s", path),
				"Create a fresh project:\n  hctorder init",
			},
		)
	}
	return cfg, nil
}

// tableProvider opens the table at path with the loader options from cfg.
func tableProvider(cfg *config.Config, path string) (*counterbalance.Provider, error) {
	delim, err := cfg.Table.DelimiterRune()
	if err != nil {
		return nil, err
	}
	opts := []counterbalance.LoadOption{
		counterbalance.WithDuplicatePolicy(counterbalance.DuplicatePolicy(cfg.Table.Duplicates)),
	}
	if delim != 0 {
		opts = append(opts, counterbalance.WithDelimiter(delim))
	}
	return counterbalance.NewProvider(counterbalance.FileOpener(path), opts...), nil
}

// loadTable loads the table eagerly so problems are reported before any
// other work.
func loadTable(cfg *config.Config, path string) (*counterbalance.Provider, *counterbalance.Table, error) {
	provider, err := tableProvider(cfg, path)
	if err != nil {
		return nil, nil, err
	}
	table, err := provider.Table()
	if err != nil {
		return nil, nil, tableError(err, path)
	}
	logger.Debug("table loaded", zap.String("path", path), zap.Int(logging.FieldTableRows, table.Len()))
	return provider, table, nil
}

func tableError(err error, path string) error {
	switch {
	case errors.Is(err, counterbalance.ErrNoSource):
		return printer.Error(
			"counterbalancing table not found",
			fmt.Sprintf("Could not open %s.", path),
			[]string{
				"Set table.path in hctorder.yml",
				"Create a sample table:\n  hctorder init",
			},
		)
	case errors.Is(err, counterbalance.ErrMissingIDColumn), errors.Is(err, counterbalance.ErrMissingTrialColumns):
		return printer.ErrorWithContext(
			"counterbalancing table has the wrong columns",
			err.Error(),
			map[string]string{"Table": path},
			[]string{"The header needs an ID column (id, subject_id, participant, participant_id)\nand Trial1, Trial2, Trial3 (or t1, t2, t3)"},
		)
	case errors.Is(err, counterbalance.ErrDuplicateID):
		return printer.ErrorWithContext(
			"counterbalancing table lists a participant twice",
			err.Error(),
			map[string]string{"Table": path},
			[]string{
				"Remove the repeated row",
				"Keep the first row for each participant:\n  table:\n    duplicates: first",
			},
		)
	default:
		return printer.ErrorWithContext(
			"counterbalancing table is invalid",
			err.Error(),
			map[string]string{"Table": path},
			nil,
		)
	}
}

func idError(raw string, err error) error {
	if errors.Is(err, counterbalance.ErrIDOutOfRange) {
		return printer.Error(
			"invalid participant ID",
			fmt.Sprintf("%q is larger than %d digits.", raw, counterbalance.IDWidth),
			[]string{"Participant IDs run from 000 to 999"},
		)
	}
	return printer.Error(
		"invalid participant ID",
		fmt.Sprintf("%q contains no digits.", raw),
		[]string{"Enter the participant number, e.g. 7, 007 or P-007"},
	)
}

// loadTemplate reads and parses the report template at path. An empty
// path means no template.
func loadTemplate(path string) (*report.Template, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, printer.Error(
			"report template not found",
			fmt.Sprintf("Could not read %s: %v", path, err),
			[]string{
				"Set template.path in hctorder.yml",
				"Skip the editable report:\n  hctorder generate --no-template ...",
			},
		)
	}
	tmpl, err := report.ParseTemplate(path, data)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"report template is invalid",
			err.Error(),
			map[string]string{"Template": path},
			[]string{"The template must start with a '---' line and a YAML front matter block closed by '---'"},
		)
	}
	return tmpl, nil
}
