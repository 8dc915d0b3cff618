package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agentloop/internal/config"
	"github.com/aretw0/agentloop/internal/presentation/tui"
	"github.com/aretw0/agentloop/internal/sanitize"
	"github.com/aretw0/agentloop/pkg/adapters/process"
	"github.com/aretw0/agentloop/pkg/client"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Model.ChunkDelay = 0
	return cfg
}

func buildApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, nil, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_Defaults(t *testing.T) {
	app := buildApp(t, testConfig())

	msg, err := app.Engine.Invoke(context.Background(), "s1", "上海天气怎么样?")
	require.NoError(t, err)
	assert.Equal(t, "查询结果：Mock天气: 上海 晴朗，25°C", msg.Content)

	families, err := app.Metrics.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "agentloop_runs_total")
	assert.Contains(t, names, "go_goroutines")
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Tools.Builtin = []string{"search"}
	_, err := Build(context.Background(), cfg, nil, false)
	assert.ErrorContains(t, err, "unknown builtin tool")

	cfg = testConfig()
	cfg.Tools.Process = []process.Config{{Name: "broken"}}
	_, err = Build(context.Background(), cfg, nil, false)
	assert.ErrorIs(t, err, process.ErrInvalidTool)
}

func TestBuild_RedisLockSharedAcrossApps(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()

	a := buildApp(t, cfg)
	b := buildApp(t, cfg)

	turn, err := a.Engine.Begin(context.Background(), "shared", "hi")
	require.NoError(t, err)

	_, err = b.Engine.Begin(context.Background(), "shared", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	turn.Close()
	other, err := b.Engine.Begin(context.Background(), "shared", "hi")
	require.NoError(t, err)
	other.Close()
}

func TestChat_Local(t *testing.T) {
	app := buildApp(t, testConfig())

	var out bytes.Buffer
	err := Chat(context.Background(), LocalStreamer{Engine: app.Engine}, ChatOptions{
		SessionID: "s1",
		In:        strings.NewReader("上海天气怎么样?\n\n今天心情怎么样\nexit\nignored\n"),
		Printer:   tui.NewPrinter(&out, tui.WithPlain()),
		Input:     sanitize.Policy{MaxSize: 1024},
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "→ get_weather (location=上海)")
	assert.Contains(t, out.String(), "⚙ Mock天气: 上海 晴朗，25°C")
	assert.Contains(t, out.String(), "你的问题我无法回答...")

	history, err := app.Engine.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestChat_RejectedInputContinues(t *testing.T) {
	app := buildApp(t, testConfig())

	var out bytes.Buffer
	err := Chat(context.Background(), LocalStreamer{Engine: app.Engine}, ChatOptions{
		SessionID: "s1",
		In:        strings.NewReader("this line is far too long\nhi\n"),
		Printer:   tui.NewPrinter(&out, tui.WithPlain()),
		Input:     sanitize.Policy{MaxSize: 8},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✗ error:")
	assert.Contains(t, out.String(), "你的问题我无法回答...")
}

func TestAsk_ReportsFailure(t *testing.T) {
	app := buildApp(t, testConfig())
	turn, err := app.Engine.Begin(context.Background(), "s1", "hold")
	require.NoError(t, err)
	defer turn.Close()

	var out bytes.Buffer
	err = Ask(context.Background(), LocalStreamer{Engine: app.Engine}, "s1", "hi", tui.NewPrinter(&out, tui.WithPlain()))
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, out.String(), "session_busy")
}

func TestServeListeners(t *testing.T) {
	app := buildApp(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	metricsLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListeners(ctx, app, testConfig().Server, ln, metricsLn)
	}()

	c := client.New("http://" + ln.Addr().String())
	require.Eventually(t, func() bool {
		_, err := c.History(context.Background(), "ready-check")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	var out bytes.Buffer
	require.NoError(t, Ask(context.Background(), c, "s1", "上海天气怎么样?", tui.NewPrinter(&out, tui.WithPlain())))
	assert.Contains(t, out.String(), "查询结果")

	resp, err := http.Get("http://" + metricsLn.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `agentloop_runs_total{outcome="ok"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
