package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows activity while a run of unknown length is in progress
type Spinner struct {
	writer   io.Writer
	message  string
	interval time.Duration
	noColor  bool

	mu     sync.Mutex
	active bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSpinner creates a spinner. An interval of zero means 100ms.
func NewSpinner(w io.Writer, message string, interval time.Duration, noColor bool) *Spinner {
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	return &Spinner{
		writer:   w,
		message:  message,
		interval: interval,
		noColor:  noColor,
	}
}

// Start begins the animation; starting an active spinner does nothing
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.animate(s.done)
}

// Stop ends the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.writer, "\r\033[K")
}

// Success stops the spinner and prints a check mark line
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintln(s.writer, FormatSuccess(message, s.noColor))
}

// Fail stops the spinner and prints a failure line
func (s *Spinner) Fail(message string) {
	s.Stop()
	red := newColor(s.noColor, color.FgRed, color.Bold)
	red.Fprintf(s.writer, "✗ %s\n", message)
}

func (s *Spinner) animate(done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := newColor(s.noColor, color.FgCyan)
	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-done:
			return
		case <-ticker.C:
			cyan.Fprintf(s.writer, "\r%s %s", spinnerFrames[frame], s.message)
		}
	}
}

// ProgressBar renders per-class progress of a weave run. Update may be called
// from several worker goroutines at once.
type ProgressBar struct {
	writer  io.Writer
	width   int
	noColor bool

	mu      sync.Mutex
	current int
	total   int
	message string
}

// NewProgressBar creates a progress bar; a width of zero means 30 cells
func NewProgressBar(w io.Writer, width int, noColor bool) *ProgressBar {
	if width == 0 {
		width = 30
	}
	return &ProgressBar{writer: w, width: width, noColor: noColor}
}

// Update records progress and redraws the bar. Stale updates that arrive out
// of order never move the bar backwards.
func (p *ProgressBar) Update(current, total int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total > 0 {
		p.total = total
	}
	if current > p.current {
		p.current = current
	}
	if p.current > p.total {
		p.current = p.total
	}
	p.message = message
	p.render()
}

// Finish completes the line with a summary message
func (p *ProgressBar) Finish(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		fmt.Fprint(p.writer, "\r\033[K")
	}
	fmt.Fprintln(p.writer, FormatSuccess(message, p.noColor))
}

func (p *ProgressBar) render() {
	if p.total == 0 {
		return
	}

	filled := p.width * p.current / p.total
	cyan := newColor(p.noColor, color.FgCyan)
	gray := newColor(p.noColor, color.FgHiBlack)

	var bar strings.Builder
	bar.WriteString("[")
	cyan.Fprint(&bar, strings.Repeat("█", filled))
	gray.Fprint(&bar, strings.Repeat("░", p.width-filled))
	bar.WriteString("]")

	line := fmt.Sprintf("\r%s %d/%d", bar.String(), p.current, p.total)
	if p.message != "" {
		line += " " + p.message
	}
	fmt.Fprint(p.writer, line+"\033[K")
}

// WithSpinner runs fn while a spinner is shown
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	spinner := NewSpinner(w, message, 0, noColor)
	spinner.Start()

	if err := fn(); err != nil {
		spinner.Fail(message + " failed")
		return err
	}
	spinner.Success(message)
	return nil
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}
