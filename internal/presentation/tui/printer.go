// Package tui renders agent streams in a terminal.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/agentloop/pkg/wire"
	"github.com/muesli/termenv"
)

// Printer writes stream payloads as a chat transcript.
// Fragments are printed as they arrive. When markdown is enabled the final
// answer is rendered again once complete.
type Printer struct {
	out      *termenv.Output
	plain    bool
	render   func(string) (string, error)
	midLine  bool
	streamed bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithMarkdown renders final answers with r.
func WithMarkdown(r func(string) (string, error)) PrinterOption {
	return func(p *Printer) {
		p.render = r
	}
}

// WithPlain disables colors, for pipes and tests.
func WithPlain() PrinterOption {
	return func(p *Printer) {
		p.plain = true
	}
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{}
	for _, opt := range opts {
		opt(p)
	}
	if p.plain {
		p.out = termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	} else {
		p.out = termenv.NewOutput(w)
	}
	return p
}

// Prompt writes the input prompt.
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, p.out.String("> ").Bold().Foreground(p.out.Color("#38bdf8")))
}

// Print writes one payload.
func (p *Printer) Print(pl wire.Payload) {
	switch pl.Type {
	case wire.TypeModel:
		if !pl.Whole {
			fmt.Fprint(p.out, pl.Content)
			p.midLine = pl.Content != "" || p.midLine
			p.streamed = true
			return
		}
		p.endLine()
		if pl.ToolCall != nil && pl.ToolCall.Name != "" {
			line := fmt.Sprintf("  → %s %s", pl.ToolCall.Name, formatArgs(pl.ToolCall.Args))
			fmt.Fprintln(p.out, p.out.String(line).Foreground(p.out.Color("#a78bfa")))
		}
	case wire.TypeTool:
		p.endLine()
		fmt.Fprintln(p.out, p.out.String("  ⚙ "+pl.Content).Faint())
	case wire.TypeResult:
		p.endLine()
		p.result(pl.Content)
		p.streamed = false
	case wire.TypeError:
		p.endLine()
		label := "error"
		if pl.Kind != "" {
			label = pl.Kind
		}
		fmt.Fprintln(p.out, p.out.String(fmt.Sprintf("✗ %s: %s", label, pl.Content)).Foreground(p.out.Color("#f87171")))
		p.streamed = false
	}
}

func (p *Printer) result(content string) {
	if p.render != nil {
		if out, err := p.render(content); err == nil {
			fmt.Fprint(p.out, out)
			return
		}
	}
	if !p.streamed {
		fmt.Fprintln(p.out, content)
	}
}

func (p *Printer) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
