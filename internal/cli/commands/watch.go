package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecspool/weaver/internal/build"
	"github.com/ecspool/weaver/internal/cli/ui"
	"github.com/ecspool/weaver/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var (
		flags    runFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-weave whenever class files change",
		Long: `Weave the directory once, then watch it and weave again whenever .class files
are created, modified or removed. Changes are batched for a short quiet period
and only one weave runs at a time.

Rewriting in place triggers one more change event per woven file; that
follow-up weave finds nothing marked and writes nothing, so the loop settles.`,
		Example: `  # Watch the compiler output directory
  weaver watch build/classes

  # Mirror into another directory with a longer quiet period
  weaver watch build/classes -o build/woven --debounce 1s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.setup(cmd, args)
			if err != nil {
				return err
			}
			defer s.logger.Sync()
			if !cmd.Flags().Changed("debounce") {
				debounce = s.cfg.Watch.Debounce
			}

			system, err := build.NewSystem(s.opts, s.logger)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), s.noColor))
				return fmt.Errorf("invalid configuration")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runWeave(ctx, cmd, system, s)

			watcher, err := watch.NewFileWatcher(s.opts.InputDir, s.cfg.Watch.Ignore, debounce, s.logger, func(files []string) error {
				s.logger.Debug("weaving after change", zap.Strings("files", files))
				runWeave(ctx, cmd, system, s)
				return nil
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				watcher.Stop()
				return err
			}

			out := cmd.OutOrStdout()
			banner := color.New(color.FgCyan, color.Bold)
			if s.noColor {
				banner.DisableColor()
			}
			fmt.Fprintln(out)
			banner.Fprintf(out, "Watching %s\n", s.opts.InputDir)
			fmt.Fprintln(out, "Press Ctrl+C to stop")

			<-ctx.Done()

			if err := watcher.Stop(); err != nil {
				return fmt.Errorf("error stopping watcher: %w", err)
			}
			fmt.Fprintln(out, "Stopped")
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a batch of changes is woven")

	return cmd
}

// runWeave performs one weave and prints a one-line outcome; failures are
// reported but do not stop watching.
func runWeave(ctx context.Context, cmd *cobra.Command, system *build.System, s *session) {
	report, err := system.Weave(ctx)
	if ctx.Err() != nil {
		return
	}
	stamp := time.Now().Format("15:04:05")
	if err != nil {
		reportWeaveFailure(cmd, report, false, s.noColor)
		return
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("[%s] %s, %d written", stamp, weaveHeadline(report), len(report.Written)), s.noColor)
}
