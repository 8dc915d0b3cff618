package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/agentloop/internal/runtime"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolInvoker_Invoke(t *testing.T) {
	reg := weatherRegistry()
	reg.Register(domain.Tool{Name: "broken"}, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("backend exploded")
	})
	reg.Register(domain.Tool{Name: "slow"}, func(ctx context.Context, args map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg.Register(domain.Tool{Name: "mutating"}, func(ctx context.Context, args map[string]any) (string, error) {
		args["location"] = "mutated"
		return "ok", nil
	})

	inv := runtime.NewToolInvoker(reg, 50*time.Millisecond)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		msg, err := inv.Invoke(ctx, *weatherCall("上海"))
		require.NoError(t, err)
		assert.Equal(t, domain.RoleTool, msg.Role)
		assert.True(t, msg.Committed)
		assert.Equal(t, "Mock天气: 上海 晴朗，25°C", msg.Content)
		require.NotNil(t, msg.ToolResult)
		assert.Equal(t, "call_1", msg.ToolResult.CallID)
		assert.False(t, msg.ToolResult.IsError)
	})

	tests := []struct {
		name    string
		call    domain.ToolCall
		wantErr error
	}{
		{"Unknown Tool", domain.ToolCall{ID: "c", Name: "nope"}, domain.ErrToolNotFound},
		{"Backend Failure", domain.ToolCall{ID: "c", Name: "broken"}, domain.ErrToolExecution},
		{"Timeout", domain.ToolCall{ID: "c", Name: "slow"}, domain.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := inv.Invoke(ctx, tt.call)
			require.ErrorIs(t, err, tt.wantErr)

			// The failure still produces exactly one committed tool message.
			assert.Equal(t, domain.RoleTool, msg.Role)
			assert.True(t, msg.Committed)
			require.NotNil(t, msg.ToolResult)
			assert.True(t, msg.ToolResult.IsError)
			assert.Equal(t, "c", msg.ToolResult.CallID)
			assert.Contains(t, msg.Content, "Error:")
		})
	}

	t.Run("Arguments Are Copied", func(t *testing.T) {
		call := *weatherCall("上海")
		call.Name = "mutating"
		_, err := inv.Invoke(ctx, call)
		require.NoError(t, err)
		assert.Equal(t, "上海", call.Args["location"])
	})

	t.Run("Parent Cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := runtime.NewToolInvoker(reg, 0).Invoke(cctx, domain.ToolCall{ID: "c", Name: "slow"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrTimeout)
	})
}

func TestToolInvoker_NoTimeout(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(domain.Tool{Name: "deadline"}, func(ctx context.Context, args map[string]any) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			return "", errors.New("unexpected deadline")
		}
		return "none", nil
	})

	msg, err := runtime.NewToolInvoker(reg, 0).Invoke(context.Background(), domain.ToolCall{Name: "deadline"})
	require.NoError(t, err)
	assert.Equal(t, "none", msg.Content)
}
