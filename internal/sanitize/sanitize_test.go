package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean_SizeLimit(t *testing.T) {
	p := Policy{MaxSize: 16}

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", 15, false},
		{"Exact Limit", 16, false},
		{"Over Limit", 17, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Clean(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooLarge)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClean_Content(t *testing.T) {
	p := Policy{}

	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{"Chinese Text", "上海天气怎么样?", "上海天气怎么样?", nil},
		{"Safe Controls", "a\nb\tc", "a\nb\tc", nil},
		{"ANSI Escape", "\x1b[31mRed\x1b[0m", "[31mRed[0m", nil},
		{"Null Byte", "Null\x00Byte", "NullByte", nil},
		{"Invalid UTF8", "bad\xff", "", ErrInvalidUTF8},
		{"Blank", "  \n ", "", ErrEmpty},
		{"Only Controls", "\x07\x00", "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Clean(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnv(t *testing.T) {
	assert.Equal(t, DefaultMaxSize, FromEnv().MaxSize)

	t.Setenv(EnvMaxSize, "10")
	assert.Equal(t, 10, FromEnv().MaxSize)

	t.Setenv(EnvMaxSize, "nope")
	assert.Equal(t, DefaultMaxSize, FromEnv().MaxSize)
}
