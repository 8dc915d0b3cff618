package agentloop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/pkg/adapters/memory"
	"github.com/aretw0/agentloop/pkg/adapters/mockmodel"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/tools/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...agentloop.Option) (*agentloop.Engine, *registry.Registry) {
	t.Helper()
	reg := registry.NewRegistry()
	weather.Register(reg)
	eng, err := agentloop.New(mockmodel.New(mockmodel.WithTools(reg), mockmodel.WithChunkDelay(0)), reg, opts...)
	require.NoError(t, err)
	return eng, reg
}

func TestEngine_WeatherScenario(t *testing.T) {
	store := memory.NewStore()
	eng, _ := newEngine(t, agentloop.WithStore(store))
	ctx := context.Background()

	final, err := eng.Invoke(ctx, "s1", "上海天气怎么样?")
	require.NoError(t, err)
	assert.Equal(t, "查询结果：Mock天气: 上海 晴朗，25°C", final.Content)

	history, err := eng.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleModel, domain.RoleTool, domain.RoleModel},
		[]domain.Role{history[0].Role, history[1].Role, history[2].Role, history[3].Role})

	again, err := eng.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, history, again, "history reads are idempotent")

	ids, err := eng.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "s1")
}

func TestEngine_NoKeyword(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	_, err := eng.Invoke(ctx, "s1", "今天心情怎么样")
	require.NoError(t, err)

	history, err := eng.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestEngine_ToolFailureKeepsSessionIntact(t *testing.T) {
	eng, reg := newEngine(t)
	ctx := context.Background()

	_, err := eng.Invoke(ctx, "s1", "今天心情怎么样")
	require.NoError(t, err)

	reg.Register(weather.Tool, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("weather service down")
	})
	_, err = eng.Invoke(ctx, "s1", "上海天气怎么样?")
	require.ErrorIs(t, err, domain.ErrToolExecution)

	history, err := eng.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2, "failed run leaves the stored session unchanged")
}

func TestEngine_Options(t *testing.T) {
	eng, _ := newEngine(t, agentloop.WithMaxToolRounds(1), agentloop.WithToolErrorPolicy(agentloop.ToolErrorsReport))
	assert.NotNil(t, eng.Graph())

	_, err := agentloop.New(mockmodel.New(), registry.NewRegistry(), agentloop.WithMaxToolRounds(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCollect_NoTerminal(t *testing.T) {
	_, err := agentloop.Collect(func(yield func(domain.ExecutionEvent) bool) {})
	assert.Error(t, err)
}
