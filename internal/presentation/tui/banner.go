package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{`                          _   _                   `, "#38bdf8"},
	{`   __ _  __ _  ___ _ __ | |_| | ___   ___  _ __  `, "#22d3ee"},
	{`  / _' |/ _' |/ _ \ '_ \| __| |/ _ \ / _ \| '_ \ `, "#2dd4bf"},
	{` | (_| | (_| |  __/ | | | |_| | (_) | (_) | |_) |`, "#34d399"},
	{`  \__,_|\__, |\___|_| |_|\__|_|\___/ \___/| .__/ `, "#4ade80"},
	{`        |___/                             |_|    `, "#a3e635"},
}

// PrintBanner writes the agentloop banner to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(out)
	for _, l := range bannerLines {
		fmt.Fprintln(out, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(out, out.String("  v"+version).Faint())
	fmt.Fprintln(out)
}
