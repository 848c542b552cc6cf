// Package models defines the request and response shapes shared by the indexer,
// the query engine, the HTTP server and the CLI.
package models

// IngestResult reports how one document was written.
type IngestResult struct {
	DocID      string `json:"docId"`
	NumChunks  int    `json:"numChunks"`
	Collection string `json:"collection"`
}

// DeleteResponse reports how many chunks were removed for a document.
type DeleteResponse struct {
	DocID        string `json:"docId"`
	DeletedCount int64  `json:"deletedCount"`
}

// WatchDirectoryRequest adds or removes a watched root.
type WatchDirectoryRequest struct {
	Path string `json:"path"`
	// Sync indexes the existing files of a newly added root; defaults to true.
	Sync *bool `json:"sync,omitempty"`
}
