package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/archive"
	"github.com/dyluth/hctorder/internal/printer"
	"github.com/dyluth/hctorder/internal/watch"
)

var (
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor sessions as they are generated",
	Long: `Monitor sessions generated on any workstation sharing the Redis history.

Every 'hctorder generate' that records to the same redis instance is shown as
it happens, until interrupted with Ctrl-C.

Output Formats:
  default - One human-readable line per session
  json    - Line-delimited JSON for programmatic processing

Requires archive.driver 'redis' in hctorder.yml.

Examples:
  # Watch the lab
  hctorder watch

  # Export events as JSON
  hctorder watch --output=json > sessions.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Archive.Driver != "redis" {
		return printer.Error(
			"live monitoring needs a redis history",
			fmt.Sprintf("archive.driver is '%s'; only the redis backend publishes sessions.", cfg.Archive.Driver),
			[]string{"Share a redis history between workstations:\n  archive:\n    driver: redis\n    redis:\n      url: redis://lab-server:6379/0"},
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	history, err := archive.OpenRedis(connectCtx, cfg.Archive.Redis.URL, cfg.Archive.Redis.Instance)
	cancel()
	if err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			err.Error(),
			map[string]string{"URL": cfg.Archive.Redis.URL, "Instance": cfg.Archive.Redis.Instance},
			[]string{"Check that the redis server is running and reachable from this workstation"},
		)
	}
	defer history.Close()

	sub, err := history.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if outputFormat == watch.OutputFormatDefault {
		printer.Step("Watching sessions on %s (Ctrl-C to stop)\n", cfg.Archive.Redis.Instance)
	}
	count, err := watch.StreamSessions(ctx, sub, printer.Stdout(), outputFormat, cfg.Location(), logger)
	logger.Debug("watch stopped", zap.Int("sessions", count))
	return err
}
