// Package errors provides structured error handling for the weaver.
// Every fatal condition of a run is reported as a WeaveError carrying the
// phase it happened in, a stable code, and the class and file it concerns,
// so it can be rendered for a terminal or as JSON for tooling.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Severity represents the severity level of an error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Phase names the run stage an error was raised in
type Phase string

const (
	PhaseRead     Phase = "read"
	PhaseExtract  Phase = "extract"
	PhaseWeave    Phase = "weave"
	PhaseValidate Phase = "validate"
	PhaseWrite    Phase = "write"
	PhaseConfig   Phase = "config"
)

// Error codes organized by category
// W100-W199: structural errors
// W200-W299: marker errors
// W300-W399: I/O errors
// W400-W499: validation errors
const (
	ErrMalformedClass       = "W100"
	ErrCyclicAncestry       = "W101"
	ErrDuplicateClass       = "W102"
	ErrUnsupportedConstruct = "W103"

	ErrMarkerInconsistency = "W200"
	ErrMarkerTarget        = "W201"

	ErrReadFailed  = "W300"
	ErrWriteFailed = "W301"

	ErrValidationFailed = "W400"
	ErrMarkerObservable = "W401"
)

// WeaveError is a structured weaver error
type WeaveError struct {
	Phase    Phase    `json:"phase"`
	Code     string   `json:"code"`
	Class    string   `json:"class,omitempty"`
	File     string   `json:"file,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Cause    error    `json:"-"`
}

// Error implements the error interface
func (e *WeaveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Class != "" {
		b.WriteString(" ")
		b.WriteString(e.Class)
	} else if e.File != "" {
		b.WriteString(" ")
		b.WriteString(e.File)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *WeaveError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error aborts the run
func (e *WeaveError) IsFatal() bool {
	return e.Severity >= Error
}

// WithFile sets the source file of the error
func (e *WeaveError) WithFile(file string) *WeaveError {
	e.File = file
	return e
}

func newError(phase Phase, code, class, message string, cause error) *WeaveError {
	return &WeaveError{
		Phase:    phase,
		Code:     code,
		Class:    class,
		Message:  message,
		Severity: Fatal,
		Cause:    cause,
	}
}

// NewMalformedClass reports a class file that cannot be decoded
func NewMalformedClass(file string, cause error) *WeaveError {
	return newError(PhaseRead, ErrMalformedClass, "", "malformed class file", cause).WithFile(file)
}

// NewCyclicAncestry reports an inheritance cycle. chain lists the classes on
// the cycle starting and ending with the same name.
func NewCyclicAncestry(chain []string) *WeaveError {
	class := ""
	if len(chain) > 0 {
		class = chain[0]
	}
	return newError(PhaseExtract, ErrCyclicAncestry, class,
		fmt.Sprintf("cyclic inheritance: %s", strings.Join(chain, " -> ")), nil)
}

// NewDuplicateClass reports two input files declaring the same class
func NewDuplicateClass(class, first, second string) *WeaveError {
	return newError(PhaseExtract, ErrDuplicateClass, class,
		fmt.Sprintf("declared by both %s and %s", first, second), nil).WithFile(second)
}

// NewUnsupportedConstruct reports a class structure the pipeline cannot
// rewrite consistently.
func NewUnsupportedConstruct(class, what string, cause error) *WeaveError {
	return newError(PhaseWeave, ErrUnsupportedConstruct, class, fmt.Sprintf("unsupported construct: %s", what), cause)
}

// NewMarkerInconsistency reports a class that declares the pooling marker
// and already extends the pooled base directly.
func NewMarkerInconsistency(class, base string) *WeaveError {
	return newError(PhaseWeave, ErrMarkerInconsistency, class,
		fmt.Sprintf("declares the pooling marker and already extends %s", base), nil)
}

// NewMarkerTarget reports the pooling marker on a type that cannot be pooled
func NewMarkerTarget(class, kind string) *WeaveError {
	return newError(PhaseWeave, ErrMarkerTarget, class,
		fmt.Sprintf("pooling marker is not allowed on %s", kind), nil)
}

// NewReadFailed reports an I/O failure while reading input
func NewReadFailed(file string, cause error) *WeaveError {
	return newError(PhaseRead, ErrReadFailed, "", "read failed", cause).WithFile(file)
}

// NewWriteFailed reports an I/O failure while writing output
func NewWriteFailed(class, file string, cause error) *WeaveError {
	return newError(PhaseWrite, ErrWriteFailed, class, "write failed", cause).WithFile(file)
}

// NewValidationFailed reports woven output that violates a weaving property
func NewValidationFailed(class, reason string) *WeaveError {
	return newError(PhaseValidate, ErrValidationFailed, class, reason, nil)
}

// NewMarkerObservable reports a woven class on which the marker is still visible
func NewMarkerObservable(class, marker string) *WeaveError {
	return newError(PhaseValidate, ErrMarkerObservable, class,
		fmt.Sprintf("pooling marker %s is still present", marker), nil)
}

// As extracts a WeaveError from an error chain
func As(err error) (*WeaveError, bool) {
	var we *WeaveError
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// List is a collection of weave errors
type List []*WeaveError

// Error implements the error interface
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

// Sort orders errors by class then code so reports are deterministic
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Class != l[j].Class {
			return l[i].Class < l[j].Class
		}
		if l[i].File != l[j].File {
			return l[i].File < l[j].File
		}
		return l[i].Code < l[j].Code
	})
}

// Collect flattens err into a List. Errors that are not WeaveErrors are
// wrapped with the given phase.
func Collect(err error, phase Phase) List {
	if err == nil {
		return nil
	}
	var list List
	if stderrors.As(err, &list) {
		return list
	}
	if we, ok := As(err); ok {
		return List{we}
	}
	return List{newError(phase, "", "", err.Error(), nil)}
}
