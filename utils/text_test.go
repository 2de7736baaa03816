package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanTextForJSON(t *testing.T) {
	in := "ok\ttext\nwith\rbreaks\x00and\x1bcontrol\x7fbytes"
	got := CleanTextForJSON(in)
	if got != "ok\ttext\nwith\rbreaksandcontrolbytes" {
		t.Fatalf("CleanTextForJSON: %q", got)
	}
}

func TestCleanTextForJSONEmpty(t *testing.T) {
	if got := CleanTextForJSON(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestTruncateErrorMessageShort(t *testing.T) {
	if got := TruncateErrorMessage("short error"); got != "short error" {
		t.Fatalf("short message must pass through: %q", got)
	}
}

func TestTruncateErrorMessageBounds(t *testing.T) {
	long := strings.Repeat("e", 1000)
	got := TruncateErrorMessage(long)
	if len(got) != MaxErrorMessageLength {
		t.Fatalf("length %d, want %d", len(got), MaxErrorMessageLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated message must end with ellipsis: %q", got[len(got)-10:])
	}
}

func TestTruncateErrorMessageKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes, so a byte cut at 497 lands mid-rune.
	long := strings.Repeat("é", MaxErrorMessageLength)
	got := TruncateErrorMessage(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated message contains invalid UTF-8: %q", got[len(got)-10:])
	}
	if len(got) > MaxErrorMessageLength {
		t.Fatalf("length %d exceeds %d", len(got), MaxErrorMessageLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated message must end with ellipsis")
	}
	if !strings.HasPrefix(got, "é") {
		t.Fatalf("message body lost: %q", got[:10])
	}
}

func TestTruncateErrorMessageExactLimit(t *testing.T) {
	exact := strings.Repeat("e", MaxErrorMessageLength)
	if got := TruncateErrorMessage(exact); got != exact {
		t.Fatalf("message at the limit must not be truncated")
	}
}
