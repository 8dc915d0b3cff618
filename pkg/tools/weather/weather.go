// Package weather provides the get_weather demo tool.
package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Name is the registered tool name.
const Name = "get_weather"

// Args are the arguments of get_weather.
type Args struct {
	Location string `mapstructure:"location"`
}

// Tool describes get_weather.
var Tool = domain.Tool{
	Name:        Name,
	Description: "获取指定城市的天气信息",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "City name",
			},
		},
		"required": []string{"location"},
	},
}

// DecodeArgs converts raw tool arguments into Args.
func DecodeArgs(raw map[string]any) (Args, error) {
	var args Args
	if err := mapstructure.Decode(raw, &args); err != nil {
		return Args{}, fmt.Errorf("invalid %s arguments: %w", Name, err)
	}
	args.Location = strings.TrimSpace(args.Location)
	if args.Location == "" {
		return Args{}, fmt.Errorf("invalid %s arguments: location is required", Name)
	}
	return args, nil
}

// Lookup returns the mock forecast for a location.
func Lookup(location string) string {
	return fmt.Sprintf("Mock天气: %s 晴朗，25°C", location)
}

// Call is the registry entry point.
func Call(ctx context.Context, raw map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	args, err := DecodeArgs(raw)
	if err != nil {
		return "", err
	}
	return Lookup(args.Location), nil
}

// Register adds get_weather to reg.
func Register(reg *registry.Registry) {
	reg.Register(Tool, Call)
}
