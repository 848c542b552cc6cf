// Package cli renders command output for the ragapi CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/pkg/utils"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLength is how many characters of a match are shown in text output.
const snippetLength = 200

// ParseOutputFormat accepts "text", "json" or empty (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
}

// WriteQueryResults writes the matches of a query to w.
func WriteQueryResults(w io.Writer, query string, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d matches for %q\n\n", len(response.Matches), query)
	for i, m := range response.Matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, m.Score)
		fmt.Fprintf(w, "Doc: %s (chunk %d)\n", m.DocID, m.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(m.Text, snippetLength))
	}
	return nil
}

// WriteIngestResults writes one line per ingested document.
func WriteIngestResults(w io.Writer, results []*models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.IngestResult{}
		}
		return writeJSON(w, results)
	}
	for _, r := range results {
		fmt.Fprintf(w, "Ingested %s: %d chunks into %s\n", r.DocID, r.NumChunks, r.Collection)
	}
	return nil
}

// WriteStatus writes the service status.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Collection:  %s (%s, %s, %d dims, %s)\n",
		status.Collection, status.Backend, status.Metric, status.Dimension, status.IndexType)
	fmt.Fprintf(w, "Chunks:      %d\n", status.ChunkCount)
	fmt.Fprintf(w, "Embedding:   %s (%s)\n", status.EmbeddingProvider, status.EmbeddingModel)
	fmt.Fprintf(w, "Chunking:    size %d, overlap %d\n", status.ChunkSize, status.ChunkOverlap)
	fmt.Fprintf(w, "Staging:     %s\n", FormatBytes(status.StagingBytes))
	if len(status.WatchDirectories) > 0 {
		fmt.Fprintf(w, "Watching:    %s\n", strings.Join(status.WatchDirectories, ", "))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
