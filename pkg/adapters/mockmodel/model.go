// Package mockmodel provides a keyword-driven streaming model.
// It needs no network access and is the default model of the CLI.
package mockmodel

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
)

const (
	// DefaultChunkDelay is the pause before each streamed rune.
	DefaultChunkDelay = 100 * time.Millisecond
	// DefaultLocation is used when the query names no place.
	DefaultLocation = "上海"
	// DefaultTool is the tool preferred for weather questions.
	DefaultTool = "get_weather"

	unanswerable = "你的问题我无法回答..."
	noQuestion   = "请输入问题"
)

var (
	keywords = []string{"天气", "weather"}
	// "weather in Paris", "weather at New York?"
	englishPlace = regexp.MustCompile(`(?i)weather\s+(?:in|at|for)\s+([\p{L}][\p{L}\s-]*)`)
	timeWords    = []string{"今天", "明天", "后天", "现在", "今日", "的"}
)

// Model answers weather questions with a tool call and reports tool results.
type Model struct {
	tools    ports.ToolLister
	toolName string
	delay    time.Duration
}

// Option configures a Model.
type Option func(*Model)

// WithTools binds the tools the model may call. The lister is consulted on
// every invocation, so tools discovered after construction are seen.
func WithTools(tools ports.ToolLister) Option {
	return func(m *Model) {
		m.tools = tools
	}
}

// WithToolName sets the tool preferred for weather questions.
func WithToolName(name string) Option {
	return func(m *Model) {
		m.toolName = name
	}
}

// WithChunkDelay sets the pause before each streamed rune. Zero streams at once.
func WithChunkDelay(d time.Duration) Option {
	return func(m *Model) {
		m.delay = d
	}
}

// New creates a mock model.
func New(opts ...Option) *Model {
	m := &Model{
		toolName: DefaultTool,
		delay:    DefaultChunkDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate streams the reply one rune per fragment. A tool call, if any,
// rides on the last fragment.
func (m *Model) Generate(ctx context.Context, history []domain.Message) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		reply, call := m.respond(history)
		runes := []rune(reply)

		var timer *time.Timer
		if m.delay > 0 {
			timer = time.NewTimer(m.delay)
			defer timer.Stop()
		}

		for i, r := range runes {
			if timer != nil {
				if i > 0 {
					timer.Reset(m.delay)
				}
				select {
				case <-ctx.Done():
					yield(domain.Fragment{}, ctx.Err())
					return
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				yield(domain.Fragment{}, err)
				return
			}

			frag := domain.Fragment{Delta: string(r)}
			if i == len(runes)-1 {
				frag.ToolCall = call
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// respond decides the full reply for the current turn.
func (m *Model) respond(history []domain.Message) (string, *domain.ToolCall) {
	userIdx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return noQuestion, nil
	}

	// Only tool results of the current turn count.
	for i := len(history) - 1; i > userIdx; i-- {
		if history[i].Role == domain.RoleTool {
			return "查询结果：" + history[i].Content, nil
		}
	}

	query := history[userIdx].Content
	tool, ok := m.pickTool()
	if !ok || !mentionsWeather(query) {
		return unanswerable, nil
	}

	return fmt.Sprintf("将要调用%s工具查询信息...", tool), &domain.ToolCall{
		Name: tool,
		Args: map[string]any{"location": ExtractLocation(query)},
	}
}

func (m *Model) pickTool() (string, bool) {
	if m.tools == nil {
		return "", false
	}
	tools := m.tools.Tools()
	if len(tools) == 0 {
		return "", false
	}
	for _, t := range tools {
		if t.Name == m.toolName {
			return t.Name, true
		}
	}
	return tools[0].Name, true
}

func mentionsWeather(query string) bool {
	lower := strings.ToLower(query)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ExtractLocation finds the place a weather question is about.
// "北京天气怎么样" yields 北京, "weather in Paris" yields Paris.
func ExtractLocation(query string) string {
	if m := englishPlace.FindStringSubmatch(query); m != nil {
		if place := strings.TrimSpace(m[1]); place != "" {
			return place
		}
	}

	before, _, found := strings.Cut(query, "天气")
	if !found {
		return DefaultLocation
	}
	place := strings.TrimSpace(before)
	for changed := true; changed; {
		changed = false
		for _, w := range timeWords {
			if trimmed, ok := strings.CutSuffix(place, w); ok {
				place, changed = strings.TrimSpace(trimmed), true
			}
			if trimmed, ok := strings.CutPrefix(place, w); ok {
				place, changed = strings.TrimSpace(trimmed), true
			}
		}
	}
	place = strings.TrimFunc(place, func(r rune) bool {
		return strings.ContainsRune(",.?!，。？！：:、 ", r)
	})
	if place == "" {
		return DefaultLocation
	}
	return place
}
