package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecspool/weaver/internal/build"
	"github.com/ecspool/weaver/internal/cli/config"
	"github.com/ecspool/weaver/internal/cli/ui"
	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/logging"
)

// runFlags are shared by every command that reads a class directory
type runFlags struct {
	configPath string
	output     string
	jobs       int
	verbose    bool
	json       bool
}

func (f *runFlags) register(cmd *cobra.Command, withOutput bool) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default: weaver.yml in the working directory)")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "Worker count (default: number of CPUs)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show detailed output and debug logs")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output results in JSON format")
	if withOutput {
		cmd.Flags().StringVarP(&f.output, "output", "o", "", "Mirror woven classes into this directory instead of rewriting in place")
	}
}

// session is everything a command needs after config and flags are merged
type session struct {
	cfg     *config.Config
	opts    *build.Options
	logger  *zap.Logger
	noColor bool
}

// setup loads the config and applies the positional directory and flags on
// top of it. Relative directories from a config file resolve against the
// file's location.
func (f *runFlags) setup(cmd *cobra.Command, args []string) (*session, error) {
	noColor := color.NoColor || f.json

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return nil, fmt.Errorf("invalid configuration")
	}

	opts := build.DefaultOptions()
	opts.Version = Version
	opts.Convention = cfg.ToConvention()
	opts.InputDir = resolveDir(cfg, cfg.Input)
	opts.OutputDir = resolveDir(cfg, cfg.Output)
	if cfg.Jobs > 0 {
		opts.Jobs = cfg.Jobs
	}

	if len(args) > 0 {
		opts.InputDir = args[0]
	}
	if cmd.Flags().Changed("output") {
		opts.OutputDir = f.output
	}
	if f.jobs > 0 {
		opts.Jobs = f.jobs
	}

	logger := logging.New(logging.Options{
		Verbose: f.verbose,
		JSON:    cfg.Log.Format == "json",
		Quiet:   !f.verbose,
	})

	return &session{cfg: cfg, opts: opts, logger: logger, noColor: noColor}, nil
}

func resolveDir(cfg *config.Config, dir string) string {
	if dir == "" || filepath.IsAbs(dir) || cfg.File == "" {
		return dir
	}
	return filepath.Join(filepath.Dir(cfg.File), dir)
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// collectErrors flattens an extraction failure for the error renderers
func collectErrors(err error) []*werrors.WeaveError {
	return werrors.Collect(err, werrors.PhaseExtract)
}
