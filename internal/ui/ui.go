// Package ui provides terminal UI utilities for wallgarden.
package ui

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

// Colors for terminal output
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Underline = "\033[4m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

// Symbols for different message types
const (
	SymbolSuccess = "✔"
	SymbolError   = "✖"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
	SymbolArrow   = "→"
	SymbolBullet  = "•"
)

// Output wraps an io.Writer with UI utilities.
type Output struct {
	w           io.Writer
	noColor     bool
	quiet       bool
	verbose     bool
	interactive bool
}

// NewOutput creates a new Output.
func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// DefaultOutput creates an Output for stdout. Colors and the spinner are
// disabled when stdout is not a terminal or NO_COLOR is set.
func DefaultOutput() *Output {
	o := NewOutput(os.Stdout)
	o.interactive = IsTerminal(os.Stdout)
	o.noColor = !o.interactive || os.Getenv("NO_COLOR") != ""
	return o
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Writer returns the underlying writer, for machine readable output.
func (o *Output) Writer() io.Writer {
	return o.w
}

// SetNoColor disables colors.
func (o *Output) SetNoColor(noColor bool) {
	o.noColor = noColor
}

// SetQuiet enables quiet mode (only errors).
func (o *Output) SetQuiet(quiet bool) {
	o.quiet = quiet
}

// SetVerbose enables verbose mode.
func (o *Output) SetVerbose(verbose bool) {
	o.verbose = verbose
}

// SetInteractive enables animated output such as the spinner.
func (o *Output) SetInteractive(interactive bool) {
	o.interactive = interactive
}

// color applies color if enabled.
func (o *Output) color(code, text string) string {
	if o.noColor {
		return text
	}
	return code + text + Reset
}

// Success prints a success message.
func (o *Output) Success(format string, args ...interface{}) {
	if o.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(o.w, "%s %s\n", o.color(Green, SymbolSuccess), msg)
}

// Error prints an error message.
func (o *Output) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(o.w, "%s %s\n", o.color(Red, SymbolError), msg)
}

// ErrorWithHint prints an error message with a hint.
func (o *Output) ErrorWithHint(err, hint string) {
	fmt.Fprintf(o.w, "%s %s\n", o.color(Red, SymbolError), err)
	fmt.Fprintf(o.w, "  %s %s\n", o.color(Gray, "Hint:"), hint)
}

// Warning prints a warning message.
func (o *Output) Warning(format string, args ...interface{}) {
	if o.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(o.w, "%s %s\n", o.color(Yellow, SymbolWarning), msg)
}

// Info prints an info message.
func (o *Output) Info(format string, args ...interface{}) {
	if o.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(o.w, "%s %s\n", o.color(Blue, SymbolInfo), msg)
}

// Print prints a plain message.
func (o *Output) Print(format string, args ...interface{}) {
	if o.quiet {
		return
	}
	fmt.Fprintf(o.w, format+"\n", args...)
}

// Debug prints a debug message (only in verbose mode).
func (o *Output) Debug(format string, args ...interface{}) {
	if !o.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(o.w, "%s %s\n", o.color(Gray, "[DEBUG]"), msg)
}

// Field prints a labeled field.
func (o *Output) Field(label, value string) {
	if o.quiet {
		return
	}
	fmt.Fprintf(o.w, "  %s %s\n", o.color(Gray, label+":"), value)
}

// FieldColored prints a labeled field with colored value.
func (o *Output) FieldColored(label, value, color string) {
	if o.quiet {
		return
	}
	fmt.Fprintf(o.w, "  %s %s\n", o.color(Gray, label+":"), o.color(color, value))
}

// Table prints a simple table. Cells may contain color codes.
func (o *Output) Table(headers []string, rows [][]string) {
	if o.quiet {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	fmt.Fprintln(o.w, o.color(Bold, joinCells(headers, widths)))

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	fmt.Fprintln(o.w, o.color(Gray, joinCells(sep, widths)))

	for _, row := range rows {
		fmt.Fprintln(o.w, joinCells(row, widths))
	}
}

var ansiRe = regexp.MustCompile("\x1b\\[[0-9;]*m")

func visibleLen(s string) int {
	return utf8.RuneCountInString(ansiRe.ReplaceAllString(s, ""))
}

func joinCells(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(cell)+2))
	}
	return strings.TrimRight(b.String(), " ")
}

// Spinner represents a CLI spinner.
type Spinner struct {
	out      *Output
	message  string
	frames   []string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  bool
	once     sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(out *Output, message string) *Spinner {
	return &Spinner{
		out:      out,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start starts the spinner. It does nothing in quiet or non-interactive mode.
func (s *Spinner) Start() {
	if s.out.quiet || !s.out.interactive || s.started {
		return
	}
	s.started = true

	go func() {
		defer close(s.done)
		i := 0
		for {
			select {
			case <-s.stop:
				// Clear the line
				fmt.Fprintf(s.out.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
				return
			default:
				frame := s.frames[i%len(s.frames)]
				fmt.Fprintf(s.out.w, "\r%s %s", s.out.color(Cyan, frame), s.message)
				time.Sleep(s.interval)
				i++
			}
		}
	}()
}

// Stop stops the spinner and clears its line. It is safe to call more than once.
func (s *Spinner) Stop() {
	if !s.started {
		return
	}
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}

// WallpaperInfo prints the outcome of a background change.
func (o *Output) WallpaperInfo(action, path, title, source string) {
	o.Success("%s", action)
	if title != "" {
		o.Field("Title", title)
	}
	if source != "" {
		o.Field("Source", source)
	}
	o.Field("File", path)
}

// Flag renders a boolean table cell.
func (o *Output) Flag(on bool) string {
	if on {
		return o.color(Green, SymbolSuccess)
	}
	return o.color(Gray, "-")
}
