// Package ui prints colored status output for the command line.
package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Logo is printed at the start of interactive commands
const Logo = `
  _       _                _
 (_) __ _| | ___  __ _  __| |___
 | |/ _' | |/ _ \/ _' |/ _' / __|
 | | (_| | |  __/ (_| | (_| \__ \
 |_|\__, |_|\___|\__,_|\__,_|___/
    |___/   lead discovery
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

func plain(text string) string { return text }

// Printer writes status lines, colored when the output is a terminal
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter writes to out. Color is used only when out is a terminal and
// NO_COLOR is unset.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: out, color: color}
}

// Stdout is a printer for standard output
func Stdout() *Printer {
	return NewPrinter(os.Stdout)
}

func (p *Printer) paint(c func(string) string) func(string) string {
	if p.color {
		return c
	}
	return plain
}

// Logo prints the banner
func (p *Printer) Logo() {
	fmt.Fprint(p.out, p.paint(Cyan)(Logo))
}

// Error prints msg in red, followed by err when given
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.paint(Red)(msg))
}

// Success prints msg in green
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.paint(Green)(msg))
}

// Info prints a label and value pair
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(Cyan)(label), p.paint(Yellow)(value))
}

// Warning prints msg in yellow
func (p *Printer) Warning(msg string) {
	fmt.Fprintln(p.out, p.paint(Yellow)(msg))
}

// Highlight prints msg in magenta
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.out, p.paint(Magenta)(msg))
}

// Plain prints msg without color
func (p *Printer) Plain(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
