package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// CatExtractor reads word-processor formats with lu4p/cat. It is the secondary
// parser for files the structured extractor could not read.
type CatExtractor struct{}

var catFormats = map[string]bool{".docx": true, ".odt": true, ".rtf": true}

func (CatExtractor) Name() string { return "cat" }

func (CatExtractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !catFormats[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("cat %s: %w", filepath.Base(path), err)
	}
	return text, nil
}
