package validation

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyMessage   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content exceeds maximum length")
	ErrInvalidUTF8    = errors.New("message content is not valid UTF-8")
)

func MaxMessageLength() int {
	maxStr := os.Getenv("MAX_MESSAGE_LENGTH")
	if maxStr == "" {
		return 4000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 4000
	}
	return max
}

func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

// ValidateMessageContent normalizes outbound content and rejects what
// the server would reject, so a doomed send never reaches the cache.
func ValidateMessageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if !utf8.ValidString(content) {
		return "", ErrInvalidUTF8
	}
	if len(content) > MaxMessageLength() {
		return "", ErrMessageTooLong
	}
	return content, nil
}
