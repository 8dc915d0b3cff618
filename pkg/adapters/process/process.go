// Package process exposes local commands as agent tools.
//
// Only commands declared in configuration are runnable. Tool arguments never
// reach the command line: each one is passed as an AGENTLOOP_ARG_<KEY>
// environment variable, and the trimmed stdout becomes the tool result.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
)

// EnvPrefix prefixes every argument variable handed to a command.
const EnvPrefix = "AGENTLOOP_ARG_"

// WaitDelay bounds how long a canceled command may keep its output pipes open.
const WaitDelay = 100 * time.Millisecond

// ErrInvalidTool reports an unusable tool declaration.
var ErrInvalidTool = errors.New("invalid process tool")

// Config declares one command-backed tool.
type Config struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Command     string         `yaml:"command" json:"command"`
	Args        []string       `yaml:"args" json:"args"`
	Dir         string         `yaml:"dir" json:"dir"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters"`
}

// Validate checks that the declaration can be registered.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: %s: command is required", ErrInvalidTool, c.Name)
	}
	return nil
}

// Tool describes the command to the model.
func (c Config) Tool() domain.Tool {
	params := c.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	desc := c.Description
	if desc == "" {
		desc = "Runs " + c.Command
	}
	return domain.Tool{Name: c.Name, Description: desc, Parameters: params}
}

// Function returns the registry binding that runs the command.
func (c Config) Function() registry.ToolFunction {
	return func(ctx context.Context, args map[string]any) (string, error) {
		return run(ctx, c, args)
	}
}

// Register validates and registers every declared command.
// Nothing is registered when any declaration is invalid.
func Register(reg *registry.Registry, tools []Config) error {
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	for _, t := range tools {
		reg.Register(t.Tool(), t.Function())
	}
	return nil
}

func run(ctx context.Context, c Config, args map[string]any) (string, error) {
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(cmd.Environ(), Env(args)...)
	cmd.WaitDelay = WaitDelay
	killGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", c.Name, err)
		}
		return "", fmt.Errorf("%s: %w: %s", c.Name, err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

var unsafeKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Env renders tool arguments as sorted environment assignments.
// Scalars are formatted plainly, everything else as JSON.
func Env(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		name := unsafeKey.ReplaceAllString(strings.ToUpper(k), "_")
		env = append(env, EnvPrefix+name+"="+envValue(args[k]))
	}
	return env
}

func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprint(v)
	}
}
