package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string with invalid UTF-8 sequences replaced.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}

// PlainExtractor is the last resort of the chain: it reads any file as text,
// dropping invalid UTF-8 and NUL bytes.
type PlainExtractor struct{}

func (PlainExtractor) Name() string { return "plain" }

func (PlainExtractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text := strings.ToValidUTF8(string(content), "")
	return strings.ReplaceAll(text, "\x00", ""), nil
}
