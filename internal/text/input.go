package text

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxInputLength  = 1000
	DefaultMaxPromptLength = 5000
)

var (
	ErrInputTooLong   = errors.New("input exceeds maximum length")
	ErrDangerousInput = errors.New("input contains dangerous content")
)

var dangerousInputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`(?i);\s*drop`),
	regexp.MustCompile(`(?i);\s*delete`),
}

// SanitizeString validates user supplied text such as a search query. The
// length is checked first, then the injection patterns; the accepted value is
// returned trimmed.
func SanitizeString(value string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	if utf8.RuneCountInString(value) > maxLength {
		return "", fmt.Errorf("%w of %d", ErrInputTooLong, maxLength)
	}
	for _, re := range dangerousInputPatterns {
		if m := re.FindString(value); m != "" {
			return "", fmt.Errorf("%w: %s", ErrDangerousInput, m)
		}
	}
	return strings.TrimSpace(value), nil
}

// SanitizePrompt is SanitizeString with the longer prompt limit.
func SanitizePrompt(prompt string) (string, error) {
	return SanitizeString(prompt, DefaultMaxPromptLength)
}
