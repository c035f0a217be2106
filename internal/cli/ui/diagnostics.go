// Package ui formats CLI output.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/goliatone/go-formschema/pkg/debug"
	"github.com/goliatone/go-formschema/pkg/validation"
)

// Printer writes colored diagnostics. The zero value writes nothing.
type Printer struct {
	out     io.Writer
	noColor bool
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	return &Printer{out: out, noColor: noColor}
}

func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

func (p *Printer) severity(s debug.Severity) (*color.Color, string) {
	switch s {
	case debug.SeverityError:
		return p.paint(color.FgRed, color.Bold), "error"
	case debug.SeverityWarning:
		return p.paint(color.FgYellow, color.Bold), "warning"
	default:
		return p.paint(color.FgCyan), "debug"
	}
}

// Diagnostics prints one line per diagnostic:
//
//	warning  personalInfo.avatar  component "Avatar" is not registered
func (p *Printer) Diagnostics(diags []debug.Diagnostic) {
	if p == nil || p.out == nil {
		return
	}
	dim := p.paint(color.Faint)
	for _, d := range diags {
		c, label := p.severity(d.Severity)
		c.Fprintf(p.out, "%-8s ", label)
		if d.Path != "" {
			dim.Fprintf(p.out, "%s  ", d.Path)
		}
		fmt.Fprintln(p.out, d.Message)
	}
}

// Issues prints validation issues as warnings.
func (p *Printer) Issues(issues []validation.Issue) {
	diags := make([]debug.Diagnostic, 0, len(issues))
	for _, issue := range issues {
		diags = append(diags, issue.Diagnostic())
	}
	p.Diagnostics(diags)
}

// Errors prints form errors keyed by field name, sorted by the caller.
func (p *Printer) Errors(names []string, errs map[string][]string) {
	if p == nil || p.out == nil {
		return
	}
	c := p.paint(color.FgRed)
	for _, name := range names {
		c.Fprintf(p.out, "✗ %s: ", name)
		fmt.Fprintln(p.out, strings.Join(errs[name], "; "))
	}
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	if p == nil || p.out == nil {
		return
	}
	p.paint(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
}

// Header prints a bold cyan title.
func (p *Printer) Header(format string, args ...any) {
	if p == nil || p.out == nil {
		return
	}
	p.paint(color.FgCyan, color.Bold).Fprintf(p.out, format+"\n", args...)
}
