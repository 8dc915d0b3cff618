package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Load Creates Empty Session", func(t *testing.T) {
		msgs, err := store.Load(ctx, sessionID+"-new")
		require.NoError(t, err)
		assert.Empty(t, msgs)

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, sessionID+"-new")
	})

	t.Run("Save and Load", func(t *testing.T) {
		call := &domain.ToolCall{ID: "c1", Name: "get_weather", Args: map[string]any{"location": "上海"}}
		turn := []domain.Message{
			domain.NewUserMessage("上海天气怎么样?"),
			domain.NewModelMessage("", call),
			domain.NewToolMessage("c1", "晴朗", false),
			domain.NewModelMessage("查询结果：晴朗", nil),
		}

		require.NoError(t, store.Save(ctx, sessionID, turn))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, loaded, 4)
		assert.Equal(t, turn[0].ID, loaded[0].ID)
		assert.Equal(t, "get_weather", loaded[1].ToolCall.Name)
		assert.Equal(t, "c1", loaded[2].ToolResult.CallID)
		assert.True(t, loaded[3].Committed)
	})

	t.Run("Loaded Copy Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotEmpty(t, loaded)

		loaded[0].Content = "tampered"
		loaded[1].ToolCall.Args["location"] = "北京"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotEqual(t, "tampered", again[0].Content)
		assert.Equal(t, "上海", again[1].ToolCall.Args["location"])
	})

	t.Run("Sessions Are Independent", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, store.Save(ctx, other, []domain.Message{
			domain.NewUserMessage("a"),
			domain.NewModelMessage("b", nil),
		}))

		a, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		b, err := store.Load(ctx, other)
		require.NoError(t, err)
		assert.Len(t, a, 4)
		assert.Len(t, b, 2)
	})
}
