package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecspool/weaver/internal/build"
	"github.com/ecspool/weaver/internal/cli/ui"
	werrors "github.com/ecspool/weaver/internal/errors"
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check that a class tree has been completely woven",
		Long: `Check an already woven tree without writing anything:
  • no class still carries the pooling marker
  • every class extending the pooled base declares the reset method
  • each pooled hierarchy reaches the pooled base exactly once

Exits non-zero when any check fails, so it can gate a packaging step.`,
		Example: `  weaver verify build/classes
  weaver verify build/woven --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.setup(cmd, args)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			system, err := build.NewSystem(s.opts, s.logger)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), s.noColor))
				return fmt.Errorf("invalid configuration")
			}

			var report *build.VerifyReport
			run := func() error {
				var err error
				report, err = system.Verify(cmd.Context())
				return err
			}
			if flags.json {
				err = run()
			} else {
				err = ui.WithSpinner(cmd.ErrOrStderr(), "Verifying classes", s.noColor, run)
			}
			if err != nil {
				return reportWeaveFailure(cmd, &build.Report{Errors: collectErrors(err)}, flags.json, s.noColor)
			}

			if flags.json {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else if report.OK() {
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d classes checked, %d pooled, no violations", report.Checked, report.Pooled), s.noColor)
			} else {
				stderr := cmd.ErrOrStderr()
				for _, v := range report.Violations {
					fmt.Fprintln(stderr, v.FormatForTerminal())
				}
				fmt.Fprint(stderr, ui.VerifyFailedError(len(report.Violations), s.noColor))
			}

			if !report.OK() {
				return fmt.Errorf("verification failed: %s", werrors.List(report.Violations).Error())
			}
			return nil
		},
	}

	flags.register(cmd, false)

	return cmd
}
