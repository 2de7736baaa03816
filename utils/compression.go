package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressText brotli-compresses text for storage. Conversation turns keep
// the full retrieval context that produced an answer; compressing it keeps
// the turn documents small.
func CompressText(text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := writer.Write([]byte(text)); err != nil {
		return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressText reverses CompressText.
func DecompressText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read brotli data: %w", err)
	}
	return string(out), nil
}
