// Package mcp connects the agent to Model Context Protocol servers.
//
// Discover imports the tools of remote servers into a registry so the
// ToolInvoker can call them like local tools; Server publishes a registry.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

// Endpoint names a remote MCP server reachable over streamable HTTP.
type Endpoint struct {
	Name string `yaml:"name" mapstructure:"name"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// ErrNoTools is returned when a server lists no tools.
var ErrNoTools = errors.New("mcp server exposes no tools")

// Connections holds the clients backing discovered tools.
type Connections struct {
	mu      sync.Mutex
	clients []*client.Client
}

// Close closes every client.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, cl := range c.clients {
		errs = append(errs, cl.Close())
	}
	c.clients = nil
	return errors.Join(errs...)
}

func (c *Connections) add(cl *client.Client) {
	c.mu.Lock()
	c.clients = append(c.clients, cl)
	c.mu.Unlock()
}

// Discover connects to every endpoint concurrently and registers their tools
// in reg. Any unreachable endpoint, or one without tools, fails discovery,
// closes the connections opened so far and leaves reg untouched.
func Discover(ctx context.Context, reg *registry.Registry, endpoints []Endpoint, logger *slog.Logger) (*Connections, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conns := &Connections{}
	staged := registry.NewRegistry()

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		g.Go(func() error {
			c, err := client.NewStreamableHttpClient(ep.URL)
			if err != nil {
				return fmt.Errorf("mcp %s: %w", ep.Name, err)
			}
			conns.add(c)
			if err := c.Start(gctx); err != nil {
				return fmt.Errorf("mcp %s: start: %w", ep.Name, err)
			}
			n, err := Register(gctx, staged, ep.Name, c)
			if err != nil {
				return err
			}
			logger.Info("MCP tools discovered", "server", ep.Name, "url", ep.URL, "tools", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = conns.Close()
		return nil, err
	}
	reg.Merge(staged)
	return conns, nil
}

// Register initializes an already started client, lists its tools and
// registers a proxy for each one. It returns the number of tools registered.
func Register(ctx context.Context, reg *registry.Registry, name string, c *client.Client) (int, error) {
	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "agentloop", Version: "1"},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("mcp %s: initialize: %w", name, err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return 0, fmt.Errorf("mcp %s: list tools: %w", name, err)
	}
	if len(listed.Tools) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoTools, name)
	}

	for _, t := range listed.Tools {
		reg.Register(fromMCPTool(t), proxy(c, t.Name))
	}
	return len(listed.Tools), nil
}

func proxy(c *client.Client, tool string) registry.ToolFunction {
	return func(ctx context.Context, args map[string]any) (string, error) {
		res, err := c.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: tool, Arguments: args},
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		text := resultText(res.Content)
		if res.IsError {
			return "", errors.New(text)
		}
		return text, nil
	}
}

func resultText(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
