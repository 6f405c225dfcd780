package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ecspool/weaver/internal/build"
	"github.com/ecspool/weaver/internal/cli/ui"
	werrors "github.com/ecspool/weaver/internal/errors"
)

// NewWeaveCommand creates the weave command
func NewWeaveCommand() *cobra.Command {
	var (
		flags  runFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "weave [dir]",
		Short: "Rewrite marked component classes for pooling",
		Long: `Scan a directory of compiled classes and rewrite every class carrying the
pooling marker so it extends the pooled base and declares a reset method.

The weave process:
  1. Discovery - find every .class file under the directory
  2. Extraction - read names, superclasses, fields and markers
  3. Weaving - re-parent roots, redirect constructors, inject reset, strip marker annotations
  4. Validation - re-parse every woven class and check the result
  5. Output - write all files atomically, or nothing on any error

Classes that need no change are left byte-for-byte identical, and weaving
an already woven tree changes nothing.`,
		Example: `  # Weave build/classes in place
  weaver weave build/classes

  # Mirror the woven tree into another directory
  weaver weave build/classes -o build/woven

  # Show what would change without writing
  weaver weave --dry-run -v

  # Machine-readable report
  weaver weave --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.setup(cmd, args)
			if err != nil {
				return err
			}
			defer s.logger.Sync()
			s.opts.DryRun = dryRun

			var bar *ui.ProgressBar
			if !flags.json && !flags.verbose {
				bar = ui.NewProgressBar(cmd.ErrOrStderr(), 0, s.noColor)
				s.opts.ProgressFunc = bar.Update
			}

			system, err := build.NewSystem(s.opts, s.logger)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), s.noColor))
				return fmt.Errorf("invalid configuration")
			}

			report, err := system.Weave(cmd.Context())
			if err != nil {
				return reportWeaveFailure(cmd, report, flags.json, s.noColor)
			}

			if flags.json {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			if bar != nil {
				bar.Finish(weaveHeadline(report))
			} else {
				ui.WriteSuccess(cmd.OutOrStdout(), weaveHeadline(report), s.noColor)
			}
			for _, warning := range report.Warnings {
				fmt.Fprint(cmd.ErrOrStderr(), ui.Warning(warning, s.noColor))
			}
			printWeaveReport(cmd.OutOrStdout(), report, flags.verbose, s.noColor)
			if report.Woven == 0 {
				fmt.Fprint(cmd.OutOrStdout(), ui.Info("Nothing to weave: every class is already pooled or needs no change", s.noColor))
			}
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Weave and validate without writing any file")

	return cmd
}

func reportWeaveFailure(cmd *cobra.Command, report *build.Report, asJSON, noColor bool) error {
	var errs []*werrors.WeaveError
	if report != nil {
		errs = report.Errors
	}

	if asJSON {
		out, err := werrors.FormatErrorsAsJSON(errs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	} else {
		stderr := cmd.ErrOrStderr()
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, werrors.FormatListForTerminal(errs))
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, ui.WeaveFailedError(len(errs), noColor))
	}
	return fmt.Errorf("weave failed")
}

func weaveHeadline(report *build.Report) string {
	verb := "Wove"
	if report.DryRun {
		verb = "Would weave"
	}
	return fmt.Sprintf("%s %d of %d classes (%s)", verb, report.Woven, report.Scanned, report.Duration.Round(time.Millisecond))
}

func printWeaveReport(w io.Writer, report *build.Report, verbose, noColor bool) {
	table := ui.NewKeyValueTable(w, noColor)
	table.AddRow("Run", report.RunID)
	table.AddRow("Scanned", strconv.Itoa(report.Scanned))
	table.AddRow("Woven", strconv.Itoa(report.Woven))
	table.AddRow("Unchanged", strconv.Itoa(report.Unchanged))
	if report.DryRun {
		table.AddRow("Written", "none (dry run)")
	} else {
		table.AddRow("Written", strconv.Itoa(len(report.Written)))
	}
	table.AddRow("Changed since last run", strconv.Itoa(len(report.Changed)))
	table.Render()

	if !verbose {
		return
	}

	gray := color.New(color.FgHiBlack)
	if noColor {
		gray.DisableColor()
	}
	for _, class := range report.Classes {
		if !class.Woven {
			continue
		}
		kind := "subclass"
		if class.Root {
			kind = "root"
		}
		fmt.Fprintf(w, "\n%s (%s)\n", class.Class, kind)
		gray.Fprintf(w, "  %s\n", class.Path)
		for _, change := range class.Changes {
			fmt.Fprintf(w, "  • %s\n", change)
		}
	}
	if len(report.Changed) > 0 {
		fmt.Fprintf(w, "\nChanged since last run:\n  %s\n", strings.Join(report.Changed, "\n  "))
	}
}
