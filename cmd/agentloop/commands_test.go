package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Contains(t, run(t, "version"), "agentloop version 0.1.0")
}

func TestGraphCommand(t *testing.T) {
	out := run(t, "graph")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `model -- "tool_call" --> tool`)
}

func TestToolsLsCommand(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	assert.Contains(t, run(t, "tools", "ls", "--config", missing), "- get_weather:")
}

func TestChatCommand_OneShot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	out := run(t, "chat", "--config", missing, "--plain", "--session", "s1", "今天心情怎么样")
	assert.Contains(t, out, "你的问题我无法回答...")
}
