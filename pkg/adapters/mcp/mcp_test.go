package mcp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	agentmcp "github.com/aretw0/agentloop/pkg/adapters/mcp"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/tools/weather"
	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherServer() *agentmcp.Server {
	reg := registry.NewRegistry()
	weather.Register(reg)
	reg.Register(domain.Tool{Name: "explode", Description: "always fails"},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("boom")
		})
	return agentmcp.NewServer("weather", "test", reg)
}

func inProcess(t *testing.T, srv *agentmcp.Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRegister_InProcess(t *testing.T) {
	ctx := context.Background()
	local := registry.NewRegistry()

	n, err := agentmcp.Register(ctx, local, "weather", inProcess(t, weatherServer()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tools := local.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "explode", tools[0].Name)
	assert.Equal(t, weather.Name, tools[1].Name)
	assert.Equal(t, weather.Tool.Description, tools[1].Description)

	t.Run("Call Proxies To Server", func(t *testing.T) {
		out, err := local.Call(ctx, weather.Name, map[string]any{"location": "上海"})
		require.NoError(t, err)
		assert.Equal(t, "Mock天气: 上海 晴朗，25°C", out)
	})

	t.Run("Tool Error Surfaces", func(t *testing.T) {
		_, err := local.Call(ctx, "explode", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Invalid Arguments Surface", func(t *testing.T) {
		_, err := local.Call(ctx, weather.Name, map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "location")
	})
}

func TestRegister_NoTools(t *testing.T) {
	empty := agentmcp.NewServer("empty", "test", registry.NewRegistry())

	_, err := agentmcp.Register(context.Background(), registry.NewRegistry(), "empty", inProcess(t, empty))
	assert.ErrorIs(t, err, agentmcp.ErrNoTools)
}

func TestDiscover_StreamableHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/mcp", weatherServer().Handler())
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()
	local := registry.NewRegistry()
	conns, err := agentmcp.Discover(ctx, local, []agentmcp.Endpoint{{Name: "weather", URL: ts.URL + "/mcp"}}, nil)
	require.NoError(t, err)
	defer conns.Close()

	out, err := local.Call(ctx, weather.Name, map[string]any{"location": "北京"})
	require.NoError(t, err)
	assert.Equal(t, "Mock天气: 北京 晴朗，25°C", out)
}

func TestDiscover_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := agentmcp.Discover(context.Background(), registry.NewRegistry(),
		[]agentmcp.Endpoint{{Name: "gone", URL: ts.URL + "/mcp"}}, nil)
	assert.Error(t, err)
}

func serveMCP(t *testing.T, srv *agentmcp.Server) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.Handler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts.URL + "/mcp"
}

func TestDiscover_PartialFailureLeavesRegistryUntouched(t *testing.T) {
	local := registry.NewRegistry()
	_, err := agentmcp.Discover(context.Background(), local, []agentmcp.Endpoint{
		{Name: "weather", URL: serveMCP(t, weatherServer())},
		{Name: "empty", URL: serveMCP(t, agentmcp.NewServer("empty", "test", registry.NewRegistry()))},
	}, nil)
	require.ErrorIs(t, err, agentmcp.ErrNoTools)
	assert.Zero(t, local.Len())
}
