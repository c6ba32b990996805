// Package sanitize cleans raw user messages before they reach the engine.
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

// DefaultMaxInputSize is 4KB, far above any sensible chat message.
const DefaultMaxInputSize = 4096

// EnvMaxInputSize overrides DefaultMaxInputSize.
const EnvMaxInputSize = "CHATFLOW_MAX_INPUT_SIZE"

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer enforces a size limit, validates UTF-8 and strips control characters.
type Sanitizer struct {
	maxSize int
}

// New returns a Sanitizer with the given byte limit; a non-positive limit selects the default.
func New(maxSize int) Sanitizer {
	if maxSize <= 0 {
		maxSize = DefaultMaxInputSize
	}
	return Sanitizer{maxSize: maxSize}
}

// FromEnv returns a Sanitizer honoring EnvMaxInputSize.
func FromEnv() Sanitizer {
	return New(MaxSizeFromEnv())
}

// MaxSize returns the byte limit.
func (s Sanitizer) MaxSize() int {
	if s.maxSize <= 0 {
		return DefaultMaxInputSize
	}
	return s.maxSize
}

// Clean returns input without unsafe control characters.
// Oversized input is rejected rather than truncated.
func (s Sanitizer) Clean(input string) (string, error) {
	if limit := s.MaxSize(); len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Newlines, tabs and carriage returns are kept. ESC, NUL, BEL and the
	// like are dropped: they poison logs and terminals.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// MaxSizeFromEnv reads EnvMaxInputSize, falling back to DefaultMaxInputSize.
func MaxSizeFromEnv() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
