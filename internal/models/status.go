package models

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status         string `json:"status"`
	CollectionName string `json:"collectionName"`
	Dimension      int    `json:"dimension"`
}

// StatusResponse summarizes the running service.
type StatusResponse struct {
	Collection        string   `json:"collection"`
	Backend           string   `json:"backend"`
	Metric            string   `json:"metric"`
	Dimension         int      `json:"dimension"`
	IndexType         string   `json:"indexType"`
	ChunkCount        int64    `json:"chunkCount"`
	EmbeddingProvider string   `json:"embeddingProvider"`
	EmbeddingModel    string   `json:"embeddingModel"`
	ChunkSize         int      `json:"chunkSize"`
	ChunkOverlap      int      `json:"chunkOverlap"`
	StagingBytes      int64    `json:"stagingBytes"`
	WatchDirectories  []string `json:"watchDirectories,omitempty"`
}
