package indexer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidChunking is returned when the overlap would keep a window from advancing.
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// Chunker splits text into overlapping character-bounded windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// A size <= 0 disables windowing. The overlap must be below a positive size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize > 0 && (chunkOverlap < 0 || chunkOverlap >= chunkSize) {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunking, chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the character overlap between consecutive windows.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text with the chunker's size and overlap.
func (c *Chunker) Chunk(text string) []string {
	return Chunk(text, c.chunkSize, c.chunkOverlap)
}

// Chunk splits text into windows of whitespace-separated tokens joined by single
// spaces. A window is closed when the next token would push it past chunkSize
// characters; the following window starts with the last overlap characters of
// the closed one, which may cut a token. A token longer than chunkSize is never
// split. When chunkSize <= 0 the text is returned unchanged as the only window.
func Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}
	var (
		chunks []string
		window []string
		length int
	)
	for _, word := range strings.Fields(text) {
		add := utf8.RuneCountInString(word)
		if len(window) > 0 {
			add++
		}
		if length+add > chunkSize && len(window) > 0 {
			closed := strings.Join(window, " ")
			chunks = append(chunks, closed)
			window = window[:0]
			length = 0
			if overlap > 0 {
				seed := lastRunes(closed, overlap)
				window = append(window, seed)
				length = utf8.RuneCountInString(seed)
			}
		}
		// add is measured against the window before any close, so a fresh
		// window without a seed counts one separator that is never written.
		window = append(window, word)
		length += add
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, " "))
	}
	return chunks
}

// lastRunes returns the last n characters of s, or s when it is shorter.
func lastRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
