package display

import (
	"fmt"
	"io"
	"os"
)

// Options configures a Service
type Options struct {
	Writer  io.Writer
	NoColor bool
	// Quiet suppresses headers, info lines and summaries; warnings and errors still print
	Quiet bool
}

// Service provides centralized formatting and output management
type Service struct {
	writer      io.Writer
	colorSystem ColorSystem
	theme       ColorTheme
	quiet       bool
}

// NewService creates a display service writing to opts.Writer (stdout when nil)
func NewService(opts Options) *Service {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Service{
		writer:      opts.Writer,
		colorSystem: NewColorSystem(opts.Writer, !opts.NoColor),
		theme:       DefaultColorTheme(),
		quiet:       opts.Quiet,
	}
}

// Writer returns the output destination
func (ds *Service) Writer() io.Writer {
	return ds.writer
}

// PrintHeader prints "=== title ===" preceded by a blank line
func (ds *Service) PrintHeader(title string) {
	if ds.quiet {
		return
	}
	fmt.Fprintf(ds.writer, "\n%s\n", ds.colorSystem.Sprintf(ds.theme.Primary, "=== %s ===", title))
}

// PrintBlock writes pre-rendered text such as a summary or table
func (ds *Service) PrintBlock(text string) {
	if ds.quiet || text == "" {
		return
	}
	fmt.Fprint(ds.writer, text)
}

func (ds *Service) Success(message string) {
	if ds.quiet {
		return
	}
	ds.printStatusMessage("SUCCESS", message, ds.theme.Success)
}

func (ds *Service) Warning(message string) {
	ds.printStatusMessage("WARNING", message, ds.theme.Warning)
}

func (ds *Service) Error(message string) {
	ds.printStatusMessage("ERROR", message, ds.theme.Error)
}

func (ds *Service) Info(message string) {
	if ds.quiet {
		return
	}
	ds.printStatusMessage("INFO", message, ds.theme.Info)
}

// Progress returns a callback that reports committed batches as info lines
func (ds *Service) Progress(label string) func(committed, total int) {
	return func(committed, total int) {
		ds.Info(fmt.Sprintf("%s: batch %d/%d committed", label, committed, total))
	}
}

func (ds *Service) printStatusMessage(level, message string, clr Color) {
	tag := ds.colorSystem.Sprintf(clr, "[%s]", level)
	fmt.Fprintf(ds.writer, "%s %s\n", tag, message)
}
