// Package config loads the agentloop configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/pkg/adapters/mcp"
	"github.com/aretw0/agentloop/pkg/adapters/process"
	"github.com/aretw0/agentloop/pkg/tools/weather"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "agentloop.yaml"

// ErrInvalid reports a configuration value out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root of agentloop.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Model  ModelConfig  `yaml:"model"`
	Tools  ToolsConfig  `yaml:"tools"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	RetryAfter  Duration `yaml:"retry_after"`
}

type EngineConfig struct {
	MaxToolRounds int      `yaml:"max_tool_rounds"`
	StepTimeout   Duration `yaml:"step_timeout"`
	ToolErrors    string   `yaml:"tool_errors"`
}

// WorstCaseRun is the longest a run can hold its session: one model step per
// tool round plus the final one, and a tool step per round, each bounded by
// StepTimeout. Zero means unbounded.
func (e EngineConfig) WorstCaseRun() time.Duration {
	if e.StepTimeout <= 0 || e.MaxToolRounds < 1 {
		return 0
	}
	return time.Duration(2*e.MaxToolRounds+1) * e.StepTimeout.Std()
}

type ModelConfig struct {
	Provider   string   `yaml:"provider"`
	ChunkDelay Duration `yaml:"chunk_delay"`
}

type ToolsConfig struct {
	Builtin []string         `yaml:"builtin"`
	MCP     []mcp.Endpoint   `yaml:"mcp"`
	Process []process.Config `yaml:"process"`
}

// RedisConfig enables the distributed session lock when Addr is set.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	LockTTL  Duration `yaml:"lock_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration accepts Go duration strings such as "30s" or "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8001",
			RetryAfter: Duration(time.Second),
		},
		Engine: EngineConfig{
			MaxToolRounds: 8,
			StepTimeout:   Duration(30 * time.Second),
			ToolErrors:    "abort",
		},
		Model: ModelConfig{
			Provider:   "mock",
			ChunkDelay: Duration(100 * time.Millisecond),
		},
		Tools: ToolsConfig{
			Builtin: []string{weather.Name},
		},
		Redis: RedisConfig{
			Prefix:  "agentloop:",
			LockTTL: Duration(10 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("AGENTLOOP_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("AGENTLOOP_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("AGENTLOOP_REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("AGENTLOOP_MAX_TOOL_ROUNDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: AGENTLOOP_MAX_TOOL_ROUNDS=%q", ErrInvalid, v)
		}
		c.Engine.MaxToolRounds = n
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Addr == "" {
		bad("server.addr is empty")
	}
	if c.Engine.MaxToolRounds < 1 {
		bad("engine.max_tool_rounds must be positive, got %d", c.Engine.MaxToolRounds)
	}
	if c.Engine.StepTimeout < 0 {
		bad("engine.step_timeout must not be negative")
	}
	if c.Engine.ToolErrors != "abort" && c.Engine.ToolErrors != "report" {
		bad("engine.tool_errors must be abort or report, got %q", c.Engine.ToolErrors)
	}
	if c.Model.Provider != "mock" {
		bad("model.provider %q is not supported", c.Model.Provider)
	}
	if c.Model.ChunkDelay < 0 {
		bad("model.chunk_delay must not be negative")
	}
	for _, name := range c.Tools.Builtin {
		if name != weather.Name {
			bad("tools.builtin: unknown tool %q", name)
		}
	}
	for i, ep := range c.Tools.MCP {
		if ep.URL == "" {
			bad("tools.mcp[%d]: url is required", i)
		}
	}
	for _, p := range c.Tools.Process {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: tools.process: %w", ErrInvalid, err))
		}
	}
	if c.Redis.Addr != "" {
		if c.Redis.LockTTL <= 0 {
			bad("redis.lock_ttl must be positive")
		} else if worst := c.Engine.WorstCaseRun(); worst > 0 && c.Redis.LockTTL.Std() < worst {
			bad("redis.lock_ttl %s is shorter than the longest possible run (%s)", c.Redis.LockTTL.Std(), worst)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		bad("log.format must be text or json, got %q", c.Log.Format)
	}
	return errors.Join(errs...)
}
