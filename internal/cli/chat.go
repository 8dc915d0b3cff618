package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/internal/presentation/tui"
	"github.com/aretw0/agentloop/internal/sanitize"
	"github.com/aretw0/agentloop/pkg/wire"
)

// Streamer runs one query and yields its stream payloads.
// *client.Client satisfies it for remote servers.
type Streamer interface {
	InvokeStream(ctx context.Context, sessionID, query string) iter.Seq[wire.Payload]
}

// LocalStreamer runs queries on an in-process engine.
type LocalStreamer struct {
	Engine *agentloop.Engine
}

func (l LocalStreamer) InvokeStream(ctx context.Context, sessionID, query string) iter.Seq[wire.Payload] {
	return func(yield func(wire.Payload) bool) {
		for ev := range l.Engine.RunTurn(ctx, sessionID, query) {
			if !yield(wire.FromEvent(sessionID, ev)) {
				return
			}
		}
	}
}

// ErrRunFailed is returned by Ask when the stream ended with an error payload.
var ErrRunFailed = errors.New("run failed")

// Ask sends one query and prints the transcript.
func Ask(ctx context.Context, s Streamer, sessionID, query string, p *tui.Printer) error {
	var failure *wire.Payload
	for pl := range s.InvokeStream(ctx, sessionID, query) {
		p.Print(pl)
		if pl.Type == wire.TypeError {
			failure = &pl
		}
	}
	if failure != nil {
		return fmt.Errorf("%w: %s", ErrRunFailed, failure.Content)
	}
	return nil
}

// ChatOptions configures an interactive session.
type ChatOptions struct {
	SessionID string
	In        io.Reader
	Printer   *tui.Printer
	Prompt    bool
	Input     sanitize.Policy
}

// Chat reads queries line by line until EOF, "exit" or cancellation.
// A failed run is printed and the chat goes on.
func Chat(ctx context.Context, s Streamer, opts ChatOptions) error {
	scanner := bufio.NewScanner(opts.In)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if opts.Prompt {
			opts.Printer.Prompt()
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		query, err := opts.Input.Clean(line)
		if err != nil {
			opts.Printer.Print(wire.Payload{Type: wire.TypeError, Content: err.Error(), SessionID: opts.SessionID, Whole: true})
			continue
		}
		if err := Ask(ctx, s, opts.SessionID, query, opts.Printer); err != nil && !errors.Is(err, ErrRunFailed) {
			return err
		}
	}
}
