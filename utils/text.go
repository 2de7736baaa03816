package utils

import (
	"strings"
	"unicode/utf8"
)

// MaxErrorMessageLength bounds every user-facing error message stored or
// transmitted by the service.
const MaxErrorMessageLength = 500

// CleanTextForJSON strips control characters that would corrupt structured
// output. Common whitespace (tab, newline, carriage return) is preserved.
func CleanTextForJSON(text string) string {
	if text == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, text)
}

// TruncateErrorMessage sanitizes and bounds an error message before it is
// written to the document record or returned to a client.
func TruncateErrorMessage(msg string) string {
	cleaned := CleanTextForJSON(msg)
	if len(cleaned) > MaxErrorMessageLength {
		// Back up to a rune boundary so the cut never leaves invalid UTF-8.
		cut := MaxErrorMessageLength - 3
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		return cleaned[:cut] + "..."
	}
	return cleaned
}
