package hosting

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nameBody = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

func TestNewName_EndsWithExtension(t *testing.T) {
	for _, ext := range []string{"", ".png", ".tar.gz", ".PDF", "txt", ".tar..gz"} {
		name, err := NewName(ext)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ext), "name %q should end in %q", name, ext)

		body := strings.TrimSuffix(name, ext)
		assert.Regexp(t, nameBody, body)
		assert.NotContains(t, body, "+")
		assert.NotContains(t, body, "/")
		assert.NotContains(t, body, "=")
	}
}

func TestNewName_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		name, err := NewName(".bin")
		require.NoError(t, err)
		require.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"png", ".png"},
		{".png", ".png"},
		{"tar.gz", ".tar.gz"},
		{"..png", ".png"},
		{"...", ""},
		{".", ""},
		{"tar..gz", ".tar..gz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeExtension(tt.in), "input %q", tt.in)
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"abc-DEF--.png", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc", false},
		{"a/b", false},
		{`a\b`, false},
		{"x..png", true},
		{"abc----.tar..gz", true},
		{"...", true},
		{"a/../b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validName(tt.name), "name %q", tt.name)
	}
}
