package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/agentloop"
	agenthttp "github.com/aretw0/agentloop/pkg/adapters/http"
	"github.com/aretw0/agentloop/pkg/adapters/mockmodel"
	"github.com/aretw0/agentloop/pkg/client"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/tools/weather"
	"github.com/aretw0/agentloop/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *agentloop.Engine) {
	t.Helper()
	reg := registry.NewRegistry()
	weather.Register(reg)
	eng, err := agentloop.New(mockmodel.New(mockmodel.WithTools(reg), mockmodel.WithChunkDelay(0)), reg)
	require.NoError(t, err)
	ts := httptest.NewServer(agenthttp.NewHandler(eng))
	t.Cleanup(ts.Close)
	return ts, eng
}

func TestClient_EndToEnd(t *testing.T) {
	ts, _ := newServer(t)
	c := client.New(ts.URL)
	ctx := context.Background()

	var result string
	var tools []string
	for p := range c.InvokeStream(ctx, "s1", "上海天气怎么样?") {
		switch p.Type {
		case wire.TypeTool:
			tools = append(tools, p.Content)
		case wire.TypeResult:
			result = p.Content
		case wire.TypeError:
			t.Fatalf("unexpected error payload: %s", p.Content)
		}
	}
	assert.Equal(t, "查询结果：Mock天气: 上海 晴朗，25°C", result)
	assert.Equal(t, []string{"Mock天气: 上海 晴朗，25°C"}, tools)

	resp, err := c.Invoke(ctx, "s1", "今天心情怎么样")
	require.NoError(t, err)
	assert.Equal(t, "你的问题我无法回答...", resp.Result)

	history, err := c.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history.History, 6)
	assert.Equal(t, domain.RoleUser, history.History[4].Role)
}

func TestClient_SessionBusy(t *testing.T) {
	ts, eng := newServer(t)
	c := client.New(ts.URL)
	ctx := context.Background()

	turn, err := eng.Begin(ctx, "s1", "hold")
	require.NoError(t, err)
	defer turn.Close()

	_, err = c.Invoke(ctx, "s1", "hi")
	require.ErrorIs(t, err, domain.ErrSessionBusy)
	var serr *client.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusConflict, serr.Code)

	var payloads []wire.Payload
	for p := range c.InvokeStream(ctx, "s1", "hi") {
		payloads = append(payloads, p)
	}
	require.Len(t, payloads, 1)
	assert.Equal(t, wire.TypeError, payloads[0].Type)
	assert.Equal(t, "session_busy", payloads[0].Kind)
	assert.Contains(t, payloads[0].Content, "409")
}

func TestClient_BadFrame(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {oops\n\n")
		fmt.Fprint(w, `data: {"type":"result","content":"ok","session_id":"s1","whole":true}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	var got []wire.Payload
	for p := range client.New(ts.URL).InvokeStream(context.Background(), "s1", "hi") {
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, wire.TypeError, got[0].Type)
	assert.Equal(t, wire.TypeResult, got[1].Type)
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	var got []wire.Payload
	for p := range client.New(ts.URL).InvokeStream(context.Background(), "s1", "hi") {
		got = append(got, p)
	}
	require.Len(t, got, 1)
	assert.Equal(t, wire.TypeError, got[0].Type)
	assert.True(t, strings.HasPrefix(got[0].Content, "request failed"))

	_, err := client.New(ts.URL).History(context.Background(), "s1")
	assert.Error(t, err)
}

func TestClient_DefaultURL(t *testing.T) {
	assert.NotNil(t, client.New(""))
}
