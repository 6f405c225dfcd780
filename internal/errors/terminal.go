package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

func severityColor(s Severity) *color.Color {
	switch s {
	case Fatal, Error:
		return color.New(color.FgRed, color.Bold)
	case Warning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgBlue, color.Bold)
	}
}

// FormatForTerminal renders the error for terminal output
func (e *WeaveError) FormatForTerminal() string {
	var sb strings.Builder

	header := severityColor(e.Severity).Sprintf("%s[%s]", e.Severity, e.Code)
	sb.WriteString(fmt.Sprintf("%s: %s\n", header, e.Message))

	arrow := color.New(color.FgCyan).Sprint("-->")
	if e.Class != "" {
		sb.WriteString(fmt.Sprintf("  %s class %s\n", arrow, e.Class))
	}
	if e.File != "" {
		sb.WriteString(fmt.Sprintf("  %s file %s\n", arrow, e.File))
	}
	if e.Cause != nil {
		gray := color.New(color.FgHiBlack)
		sb.WriteString(gray.Sprintf("  caused by: %v\n", e.Cause))
	}
	sb.WriteString(color.New(color.FgHiBlack).Sprintf("  during %s\n", e.Phase))

	return sb.String()
}

// FormatListForTerminal renders every error followed by a count line
func FormatListForTerminal(errs []*WeaveError) string {
	var sb strings.Builder
	for i, e := range errs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(e.FormatForTerminal())
	}
	if len(errs) > 0 {
		noun := "error"
		if len(errs) > 1 {
			noun = "errors"
		}
		sb.WriteString(color.New(color.FgRed, color.Bold).Sprintf("\n%d %s, nothing written\n", len(errs), noun))
	}
	return sb.String()
}
