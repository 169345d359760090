// Package cli implements the slinkity commands: assembling a project from
// its config, building it and serving it in development.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/slinkity/slinkity"
)

// ANSI color codes
const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
	dim    = "\033[2m"
)

// ColorPrinter provides colored output utilities
type ColorPrinter struct {
	out      io.Writer
	errOut   io.Writer
	useColor bool
}

// NewColorPrinter creates a printer on stdout and stderr. Colors are used
// only when stdout is a terminal.
func NewColorPrinter() *ColorPrinter {
	return &ColorPrinter{out: os.Stdout, errOut: os.Stderr, useColor: isTerminal()}
}

// NewPlainPrinter creates a printer without colors writing both streams to w.
func NewPlainPrinter(w io.Writer) *ColorPrinter {
	return &ColorPrinter{out: w, errOut: w}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (p *ColorPrinter) colorize(color, text string) string {
	if !p.useColor {
		return text
	}
	return color + text + reset
}

// Success prints a green success message with checkmark
func (p *ColorPrinter) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.colorize(green, "✓"), fmt.Sprintf(format, args...))
}

// Error prints a red error message with X mark
func (p *ColorPrinter) Error(format string, args ...any) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.colorize(red, "✗"), fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning message
func (p *ColorPrinter) Warning(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.colorize(yellow, "!"), fmt.Sprintf(format, args...))
}

// Info prints a blue info message
func (p *ColorPrinter) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.colorize(blue, "→"), fmt.Sprintf(format, args...))
}

// Step prints a step in a process
func (p *ColorPrinter) Step(step, total int, format string, args ...any) {
	prefix := fmt.Sprintf("[%d/%d]", step, total)
	fmt.Fprintf(p.out, "%s %s\n", p.colorize(cyan, prefix), fmt.Sprintf(format, args...))
}

// Title prints a bold title
func (p *ColorPrinter) Title(format string, args ...any) {
	fmt.Fprintf(p.out, "\n%s\n\n", p.colorize(bold, fmt.Sprintf(format, args...)))
}

// Subtitle prints a dimmed subtitle
func (p *ColorPrinter) Subtitle(format string, args ...any) {
	fmt.Fprintf(p.out, "%s\n", p.colorize(dim, fmt.Sprintf(format, args...)))
}

// Bold returns bold text
func (p *ColorPrinter) Bold(text string) string {
	return p.colorize(bold, text)
}

// Cyan returns cyan text
func (p *ColorPrinter) Cyan(text string) string {
	return p.colorize(cyan, text)
}

// Dim returns dimmed text
func (p *ColorPrinter) Dim(text string) string {
	return p.colorize(dim, text)
}

// PrintBanner prints the slinkity banner
func (p *ColorPrinter) PrintBanner() {
	banner := `
     _ _       _    _ _
 ___| (_)_ __ | | _(_) |_ _   _
/ __| | | '_ \| |/ / | __| | | |
\__ \ | | | | |   <| | |_| |_| |
|___/_|_|_| |_|_|\_\_|\__|\__, |
                          |___/
`
	fmt.Fprintln(p.out, p.colorize(cyan, banner))
	fmt.Fprintf(p.out, "%s %s\n\n", p.Dim("Islands for static sites"), p.Dim("v"+slinkity.Version))
}
