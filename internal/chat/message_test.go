package chat

import (
	"strings"
	"testing"
)

func TestSanitizeStripsMarkup(t *testing.T) {
	got, err := Sanitize(`  <b>hi</b> <script>alert(1)</script>there  `, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "<") || strings.Contains(got, "alert") {
		t.Fatalf("markup survived: %q", got)
	}
	if !strings.HasPrefix(got, "hi") || !strings.HasSuffix(got, "there") {
		t.Fatalf("text lost: %q", got)
	}
}

func TestSanitizeLimits(t *testing.T) {
	if _, err := Sanitize("<img src=x>", 10); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := Sanitize("   ", 10); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := Sanitize(strings.Repeat("é", 11), 10); err != ErrMessageTooLong {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := Sanitize(strings.Repeat("é", 10), 10); err != nil {
		t.Fatalf("ten runes fit: %v", err)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("unexpected preview %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd…" {
		t.Fatalf("unexpected preview %q", got)
	}
	body, err := Sanitize("fish & chips", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Preview(body, 7); got != "fish …" {
		t.Fatalf("entity split in preview %q", got)
	}
	if got := Preview(body, 10); got != "fish &amp;…" {
		t.Fatalf("unexpected preview %q", got)
	}
}
