package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/hctorder/internal/git"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/internal/scaffold"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Initialize a new hctorder project",
	Long: `Initialize a new hctorder project with default configuration, a sample
counterbalancing table and a sample report template.

Creates:
  • hctorder.yml       - Project configuration file
  • counterbalance.csv - 24 participants spread evenly over the six orderings
                         of 30, 45 and 55 second trials
  • report.Rmd         - R Markdown report whose front matter receives the
                         session parameters

Files are created in DIR, or the working directory when DIR is omitted.

Use --force to reinitialize an existing project (WARNING: replaces the existing table).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (replaces hctorder.yml, counterbalance.csv and report.Rmd)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			title, explanation, _ := strings.Cut(err.Error(), "\n\n")
			return printer.Error(title, explanation, nil)
		}
	}

	if err := scaffold.Initialize(dir, forceInit, printer.Stdout()); err != nil {
		return printer.Error(
			"initialization failed",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is writable", dir)},
		)
	}

	scaffold.PrintSuccess(printer.Stdout())

	// Session artefacts identify participants and should stay out of version control.
	if paths := git.NewChecker(dir).Unignored(scaffold.GeneratedPaths...); len(paths) > 0 {
		printer.Warning("Add these paths to .gitignore: %s\n", strings.Join(paths, ", "))
	}
	return nil
}
