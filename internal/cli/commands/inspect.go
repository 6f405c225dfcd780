package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecspool/weaver/internal/build"
	"github.com/ecspool/weaver/internal/cli/ui"
	"github.com/ecspool/weaver/internal/metadata"
)

// inspectOutput is the --json shape of inspect
type inspectOutput struct {
	Convention metadata.Convention       `json:"convention"`
	Classes    []*metadata.ClassMetadata `json:"classes"`
	Chain      []string                  `json:"chain,omitempty"`
}

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	var (
		flags      runFlags
		className  string
		pooledOnly bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Show how each class would be treated",
		Long: `Extract class metadata without weaving and print, for every class, whether it
is a poolable root, a poolable subclass, already pooled, or left alone.

With --class, print the class's fields and its effective ancestry after weaving.`,
		Example: `  # Table of every class
  weaver inspect build/classes

  # Only classes the weaver touches
  weaver inspect --pooled

  # Ancestry of one class (dotted names work too)
  weaver inspect --class game.HomingBullet

  # Full metadata as JSON
  weaver inspect --json`,
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

			snap, err := system.Inspect(cmd.Context())
			if err != nil {
				return reportWeaveFailure(cmd, &build.Report{Errors: collectErrors(err)}, flags.json, s.noColor)
			}

			out := cmd.OutOrStdout()
			if className != "" {
				name := strings.ReplaceAll(className, ".", "/")
				meta, ok := snap.Lookup(name)
				if !ok {
					fmt.Fprint(cmd.ErrOrStderr(), ui.ClassNotFoundError(className, ui.SuggestClasses(className, snap.Names()), s.noColor))
					return fmt.Errorf("class %s not found", className)
				}
				if flags.json {
					return writeJSON(out, inspectOutput{
						Convention: snap.Convention(),
						Classes:    []*metadata.ClassMetadata{meta},
						Chain:      snap.Chain(name),
					})
				}
				printClassDetail(out, snap, meta, s.noColor)
				return nil
			}

			var classes []*metadata.ClassMetadata
			for _, meta := range snap.Classes() {
				if pooledOnly && !meta.Poolable && !meta.AlreadyPooled {
					continue
				}
				classes = append(classes, meta)
			}

			if flags.json {
				if classes == nil {
					classes = []*metadata.ClassMetadata{}
				}
				return writeJSON(out, inspectOutput{Convention: snap.Convention(), Classes: classes})
			}

			table := ui.NewTable(out, s.noColor, "CLASS", "STATUS", "SUPER", "AFTER WEAVING", "FIELDS")
			for _, meta := range classes {
				table.AddRow(meta.QualifiedName, classStatus(meta), meta.SuperclassName, meta.EffectiveSuperclassName, strconv.Itoa(len(meta.Fields)))
			}
			table.Render()
			fmt.Fprintf(out, "\n%d classes, %d to weave\n", snap.Len(), len(snap.Pending()))
			return nil
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVarP(&className, "class", "c", "", "Show one class in detail")
	cmd.Flags().BoolVar(&pooledOnly, "pooled", false, "List only poolable and already pooled classes")

	return cmd
}

func classStatus(meta *metadata.ClassMetadata) string {
	switch {
	case meta.Root:
		return "root"
	case meta.Poolable:
		return "subclass"
	case meta.AlreadyPooled:
		return "pooled"
	default:
		return "-"
	}
}

func printClassDetail(w io.Writer, snap *metadata.Snapshot, meta *metadata.ClassMetadata, noColor bool) {
	ui.Header(w, meta.QualifiedName, noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("Status", classStatus(meta))
	kv.AddRow("File", meta.Path)
	kv.AddRow("Marked", strconv.FormatBool(meta.Marked))
	kv.AddRow("Declares reset", strconv.FormatBool(meta.HasReset))
	kv.AddRow("Ancestry", strings.Join(snap.Chain(meta.QualifiedName), " → "))
	kv.Render()

	if len(meta.Fields) == 0 {
		return
	}
	fmt.Fprintln(w)
	table := ui.NewTable(w, noColor, "FIELD", "DESCRIPTOR", "RESET")
	for _, f := range meta.Fields {
		reset := "no"
		if f.Resettable() {
			reset = "yes"
		}
		table.AddRow(f.Name, f.Descriptor, reset)
	}
	table.Render()
}
