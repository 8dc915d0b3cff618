// Package sanitize validates user queries before they enter a conversation log.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the byte limit of a query.
	DefaultMaxSize = 4096
	// EnvMaxSize overrides DefaultMaxSize.
	EnvMaxSize = "AGENTLOOP_MAX_INPUT_SIZE"
)

var (
	ErrTooLarge    = errors.New("query exceeds maximum allowed size")
	ErrInvalidUTF8 = errors.New("query contains invalid UTF-8 sequences")
	ErrEmpty       = errors.New("query is empty")
)

// Policy is a query validation policy.
type Policy struct {
	MaxSize int
}

// FromEnv returns the default policy, honouring EnvMaxSize.
func FromEnv() Policy {
	p := Policy{MaxSize: DefaultMaxSize}
	if val := os.Getenv(EnvMaxSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			p.MaxSize = size
		}
	}
	return p
}

// Clean rejects oversized, non-UTF-8 or blank queries and strips control
// characters other than newline, tab and carriage return.
// Oversized input is rejected rather than truncated.
func (p Policy) Clean(query string) (string, error) {
	limit := p.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	if len(query) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTooLarge, len(query), limit)
	}
	if !utf8.ValidString(query) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(query, unsafeControl) >= 0 {
		query = strings.Map(func(r rune) rune {
			if unsafeControl(r) {
				return -1
			}
			return r
		}, query)
	}

	if strings.TrimSpace(query) == "" {
		return "", ErrEmpty
	}
	return query, nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
