// Package ui prints step results in the [OK]/[WARN]/[FAIL] column layout
// and renders release notes.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// column is where the status marker starts.
const column = 60

// Printer writes human-facing output. Quiet printers drop everything but
// failures.
type Printer struct {
	out      io.Writer
	quiet    bool
	terminal bool

	ok   lipgloss.Style
	warn lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// New returns a Printer writing to out. Colors are used only when out is a
// terminal.
func New(out io.Writer, quiet bool) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:      out,
		quiet:    quiet,
		terminal: IsTerminal(out),
		ok:       r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:     r.NewStyle().Foreground(lipgloss.Color("1")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// IsTerminal reports whether w is a character device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// OK prints msg followed by [OK].
func (p *Printer) OK(msg string) {
	if p.quiet {
		return
	}
	p.marked(msg, p.ok.Render("[OK]"))
}

// Warn prints msg followed by [WARN].
func (p *Printer) Warn(msg string) {
	if p.quiet {
		return
	}
	p.marked(msg, p.warn.Render("[WARN]"))
}

// Fail prints msg followed by [FAIL], even when quiet.
func (p *Printer) Fail(msg string) {
	p.marked(msg, p.fail.Render("[FAIL]"))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Detail prints an indented, dimmed line under the previous step.
func (p *Printer) Detail(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, "  "+p.dim.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) marked(msg, marker string) {
	fmt.Fprintf(p.out, "%-*s%s\n", column, msg, marker)
}

// Markdown renders md for the terminal, or as plain wrapped text when the
// output is not one.
func (p *Printer) Markdown(md string) error {
	if p.quiet || strings.TrimSpace(md) == "" {
		return nil
	}

	style := glamour.WithStandardStyle("notty")
	if p.terminal {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = io.WriteString(p.out, out)
	return err
}
