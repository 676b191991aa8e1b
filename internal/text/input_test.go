package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    string
		wantErr error
	}{
		{"Normal", "  how do I deploy?  ", 0, "how do I deploy?", nil},
		{"Script", "<SCRIPT>alert(1)</SCRIPT>", 0, "", ErrDangerousInput},
		{"Javascript Protocol", "JavaScript:void(0)", 0, "", ErrDangerousInput},
		{"Event Handler", "img onerror = x", 0, "", ErrDangerousInput},
		{"SQL Comment", "name -- comment", 0, "", ErrDangerousInput},
		{"SQL Drop", "x'; DROP TABLE users", 0, "", ErrDangerousInput},
		{"SQL Delete", "x;delete from t", 0, "", ErrDangerousInput},
		{"Too Long", strings.Repeat("a", 11), 10, "", ErrInputTooLong},
		{"Exactly Max", strings.Repeat("é", 10), 10, strings.Repeat("é", 10), nil},
		{"Default Max Accepted", strings.Repeat("a", DefaultMaxInputLength), 0, strings.Repeat("a", DefaultMaxInputLength), nil},
		{"Default Max Exceeded", strings.Repeat("a", DefaultMaxInputLength+1), 0, "", ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeString(tt.input, tt.max)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeString_LengthCheckedFirst(t *testing.T) {
	_, err := SanitizeString("<script>"+strings.Repeat("a", 20), 10)
	assert.ErrorIs(t, err, ErrInputTooLong)
}

func TestSanitizePrompt(t *testing.T) {
	long := strings.Repeat("word ", 900)
	got, err := SanitizePrompt(long)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(long), got)

	_, err = SanitizePrompt(strings.Repeat("a", DefaultMaxPromptLength+1))
	assert.ErrorIs(t, err, ErrInputTooLong)
}
