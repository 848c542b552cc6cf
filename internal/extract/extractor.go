// Package extract turns document files into plain text. Extractors are composed
// into a priority-ordered fallback chain.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoText is returned when no extractor produced non-blank text.
	ErrNoText = errors.New("no text could be extracted")
	// ErrUnsupportedFormat is returned by an extractor that does not handle the file type.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// TextExtractor extracts the text of one file.
type TextExtractor interface {
	Name() string
	Extract(path string) (string, error)
}

// Extractor parses the formats it knows natively: PDF, OOXML (docx, xlsx, pptx),
// OpenDocument (odt, ods, odp), legacy xls and plain text.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string { return "structured" }

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".xls":
		return extractXLS(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odt":
		return extractOpenDocument("ODT", content)
	case ".odp":
		return extractOpenDocument("ODP", content)
	case ".ods":
		return extractOpenDocument("ODS", content)
	case ".txt", ".md", ".rst", ".csv", ".json", ".html", ".htm", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Chain tries each extractor in order and returns the first non-blank text.
type Chain struct {
	extractors []TextExtractor
	logger     *zap.Logger
}

// NewChain composes extractors in priority order.
func NewChain(logger *zap.Logger, extractors ...TextExtractor) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{extractors: extractors, logger: logger}
}

// DefaultChain is the structured parser, then lu4p/cat, then a raw text read.
func DefaultChain(logger *zap.Logger) *Chain {
	return NewChain(logger, NewExtractor(), CatExtractor{}, PlainExtractor{})
}

func (c *Chain) Name() string { return "chain" }

// Extract returns the first non-blank result. When every extractor fails or
// yields blank text the error wraps ErrNoText and the individual failures.
func (c *Chain) Extract(path string) (string, error) {
	var errs []error
	for _, e := range c.extractors {
		text, err := e.Extract(path)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedFormat) {
				c.logger.Debug("extractor failed, trying next",
					zap.String("extractor", e.Name()),
					zap.String("file", filepath.Base(path)),
					zap.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return text, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w from %s", ErrNoText, filepath.Base(path))
	}
	return "", fmt.Errorf("%w from %s: %w", ErrNoText, filepath.Base(path), errors.Join(errs...))
}
