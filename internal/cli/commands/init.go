package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ecspool/weaver/internal/cli/config"
)

// initAnswers receives the interactive answers
type initAnswers struct {
	Input            string `survey:"input"`
	Output           string `survey:"output"`
	MarkerAnnotation string `survey:"marker_annotation"`
	MarkerInterface  string `survey:"marker_interface"`
	PooledBase       string `survey:"pooled_base"`
	ResetMethod      string `survey:"reset_method"`
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		yes   bool
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a weaver.yml configuration file",
		Long: `Create weaver.yml in the current directory, asking for the class directory,
the pooling marker, the pooled base class and the reset method name.

Class names may be written with dots or slashes; they are stored as JVM
internal names.`,
		Example: `  # Answer prompts
  weaver init

  # Accept every default
  weaver init --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			successColor := color.New(color.FgGreen, color.Bold)
			infoColor := color.New(color.FgCyan)

			if _, err := os.Stat(path); err == nil && !force {
				if yes {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				overwrite := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("%s already exists. Overwrite?", path),
				}
				if err := survey.AskOne(prompt, &overwrite); err != nil {
					return err
				}
				if !overwrite {
					infoColor.Fprintln(out, "Left existing configuration unchanged")
					return nil
				}
			}

			cfg := config.Default()
			if !yes {
				if err := askConfig(cfg); err != nil {
					return err
				}
			}

			if err := cfg.ToConvention().Validate(); err != nil {
				return fmt.Errorf("invalid convention: %w", err)
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}

			successColor.Fprintf(out, "✓ Created %s\n", path)
			infoColor.Fprintf(out, "  Run 'weaver weave' to weave %s\n", cfg.Input)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Use defaults without prompting")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&path, "path", config.FileNames[0], "File to create")

	return cmd
}

func askConfig(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name:     "input",
			Prompt:   &survey.Input{Message: "Directory of compiled classes:", Default: "build/classes"},
			Validate: survey.Required,
		},
		{
			Name:   "output",
			Prompt: &survey.Input{Message: "Output directory (empty to rewrite in place):"},
		},
		{
			Name:     "marker_annotation",
			Prompt:   &survey.Input{Message: "Pooling marker annotation:", Default: descriptorToName(cfg.Convention.MarkerAnnotation)},
			Validate: survey.Required,
		},
		{
			Name:   "marker_interface",
			Prompt: &survey.Input{Message: "Marker interface (optional):"},
		},
		{
			Name:     "pooled_base",
			Prompt:   &survey.Input{Message: "Pooled base class:", Default: internalToDotted(cfg.Convention.PooledBase)},
			Validate: survey.Required,
		},
		{
			Name:     "reset_method",
			Prompt:   &survey.Input{Message: "Reset method name:", Default: cfg.Convention.ResetMethod},
			Validate: survey.Required,
		},
	}

	var answers initAnswers
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	applyAnswers(cfg, answers)
	return nil
}

// applyAnswers copies answers into cfg, converting dotted class names
func applyAnswers(cfg *config.Config, answers initAnswers) {
	cfg.Input = strings.TrimSpace(answers.Input)
	cfg.Output = strings.TrimSpace(answers.Output)
	cfg.Convention = config.ConventionConfig{
		MarkerAnnotation: nameToDescriptor(answers.MarkerAnnotation),
		MarkerInterface:  dottedToInternal(answers.MarkerInterface),
		PooledBase:       dottedToInternal(answers.PooledBase),
		ResetMethod:      strings.TrimSpace(answers.ResetMethod),
	}
}

func dottedToInternal(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), ".", "/")
}

func internalToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// nameToDescriptor accepts ecs.annotations.Pooled, ecs/annotations/Pooled or
// a descriptor and returns the descriptor form
func nameToDescriptor(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return name
	}
	return "L" + dottedToInternal(strings.TrimPrefix(name, "@")) + ";"
}

func descriptorToName(desc string) string {
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		return internalToDotted(desc[1 : len(desc)-1])
	}
	return desc
}
