// Package fileid derives document IDs from file names.
package fileid

import (
	"path/filepath"
	"strings"
)

// DocID returns the document ID for a file: its base name without the last
// extension. "reports/q3.summary.pdf" becomes "q3.summary". Dot files keep their
// full name. Files with the same name in different directories share an ID.
func DocID(path string) string {
	base := filepath.Base(filepath.Clean(path))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return base
	}
	return stem
}
