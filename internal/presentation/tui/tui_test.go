package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherTranscript() []wire.Payload {
	call := &domain.ToolCall{Name: "get_weather", Args: map[string]any{"location": "上海"}}
	return []wire.Payload{
		{Type: wire.TypeModel, Content: "将要"},
		{Type: wire.TypeModel, Content: "调用"},
		{Type: wire.TypeModel, Content: "将要调用", Whole: true, ToolCall: call},
		{Type: wire.TypeTool, Content: "Mock天气: 上海 晴朗，25°C", Whole: true},
		{Type: wire.TypeModel, Content: "查询结果", Whole: false},
		{Type: wire.TypeModel, Content: "查询结果", Whole: true},
		{Type: wire.TypeResult, Content: "查询结果", Whole: true},
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithPlain())
	for _, pl := range weatherTranscript() {
		p.Print(pl)
	}

	assert.Equal(t, strings.Join([]string{
		"将要调用",
		"  → get_weather (location=上海)",
		"  ⚙ Mock天气: 上海 晴朗，25°C",
		"查询结果",
		"",
	}, "\n"), buf.String())
}

func TestPrinter_ResultWithoutFragments(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithPlain())
	p.Print(wire.Payload{Type: wire.TypeResult, Content: "done", Whole: true})
	assert.Equal(t, "done\n", buf.String())
}

func TestPrinter_Error(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithPlain())
	p.Print(wire.Payload{Type: wire.TypeModel, Content: "partial"})
	p.Print(wire.Payload{Type: wire.TypeError, Content: "session is busy", Kind: "session_busy", Whole: true})
	assert.Equal(t, "partial\n✗ session_busy: session is busy\n", buf.String())
}

func TestPrinter_Markdown(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithPlain(), WithMarkdown(func(s string) (string, error) {
		return "<" + s + ">\n", nil
	}))
	p.Print(wire.Payload{Type: wire.TypeModel, Content: "**hi**"})
	p.Print(wire.Payload{Type: wire.TypeResult, Content: "**hi**", Whole: true})
	assert.Equal(t, "**hi**\n<**hi**>\n", buf.String())
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer("notty", 40)
	out, err := render("# Weather\n\nSunny in **Shanghai**")
	require.NoError(t, err)
	assert.Contains(t, out, "Weather")
	assert.Contains(t, out, "Shanghai")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
}

func TestTerminalDetection(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, 80, Width(f, 80))
}
