package chat

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxLength bounds a message body, counted in characters after
// sanitising.
const DefaultMaxLength = 2000

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

var policy = bluemonday.StrictPolicy()

// Sanitize strips all markup from body and enforces the length limit. The
// result is HTML-escaped text safe to render verbatim.
func Sanitize(body string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	clean := strings.TrimSpace(policy.Sanitize(body))
	if clean == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(clean) > maxLength {
		return "", ErrMessageTooLong
	}
	return clean, nil
}

// Preview shortens a sanitised body for notifications. A cut never splits
// an HTML entity.
func Preview(body string, n int) string {
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	cut := string([]rune(body)[:n])
	if amp := strings.LastIndexByte(cut, '&'); amp >= 0 && !strings.Contains(cut[amp:], ";") {
		cut = cut[:amp]
	}
	return cut + "…"
}
