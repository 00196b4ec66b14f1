package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

var (
	checkTable    string
	checkTemplate string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the counterbalancing table and report template",
	Long: `Load the counterbalancing table exactly as 'generate' will and summarise it:
the number of participants, which headers were matched to the ID and trial
columns, and how often each trial ordering is assigned.

The configured report template is parsed too, so a broken front matter block
is found before the first session.

Examples:
  # Check the configured table and template
  hctorder check

  # Check a candidate table before switching to it
  hctorder check --table tables/study2.csv`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkTable, "table", "", "Table to check instead of table.path")
	checkCmd.Flags().StringVar(&checkTemplate, "template", "", "Template to check instead of template.path")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tablePath := checkTable
	if tablePath == "" {
		tablePath = cfg.Resolve(cfg.Table.Path)
	}
	_, table, err := loadTable(cfg, tablePath)
	if err != nil {
		return err
	}

	printer.Success("Table %s is valid\n\n", tablePath)
	cols := table.Columns()
	printer.Field("Participants", fmt.Sprintf("%d", table.Len()))
	printer.Field("ID column", cols.ID)
	printer.Field("Trial columns", fmt.Sprintf("%s, %s, %s", cols.Trial1, cols.Trial2, cols.Trial3))
	if table.Skipped() > 0 {
		printer.Field("Duplicates", fmt.Sprintf("%d later rows ignored", table.Skipped()))
	}
	if ids := table.IDs(); len(ids) > 0 {
		printer.Field("ID range", fmt.Sprintf("%s to %s", ids[0], ids[len(ids)-1]))
	}

	freq := orderFrequencies(table)
	printer.Println()
	printer.Println("Trial orders:")
	for _, f := range freq {
		printer.Printf("  %-18s %d\n", f.order, f.count)
	}
	if len(freq) > 1 && freq[0].count != freq[len(freq)-1].count {
		printer.Println()
		printer.Warning("Trial orders are not assigned equally often (%d to %d participants each)\n",
			freq[len(freq)-1].count, freq[0].count)
	}

	templatePath := checkTemplate
	if templatePath == "" {
		templatePath = cfg.Resolve(cfg.Template.Path)
	}
	if templatePath == "" {
		return nil
	}
	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return err
	}
	printer.Println()
	printer.Success("Template %s is valid\n", tmpl.Name())
	return nil
}

type orderCount struct {
	order string
	count int
}

// orderFrequencies counts participants per ordering, most frequent first.
func orderFrequencies(table *counterbalance.Table) []orderCount {
	counts := map[string]int{}
	for _, e := range table.Entries() {
		counts[counterbalance.FormatOrder(e.Order())]++
	}
	out := make([]orderCount, 0, len(counts))
	for order, n := range counts {
		out = append(out, orderCount{order: order, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].order < out[j].order
	})
	return out
}
