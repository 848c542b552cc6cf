package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned when a query request fails validation.
var ErrInvalidQuery = errors.New("invalid query")

// QueryRequest is a semantic search request.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
	DocID string `json:"docId,omitempty"`

	topKSet bool
}

// SetTopK sets TopK explicitly, so a zero is validated instead of defaulted.
func (q *QueryRequest) SetTopK(k int) {
	q.TopK = k
	q.topKSet = true
}

// UnmarshalJSON records whether topK was present in the body.
func (q *QueryRequest) UnmarshalJSON(data []byte) error {
	type plain QueryRequest
	aux := struct {
		*plain
		TopK *int `json:"topK"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.TopK != nil {
		q.SetTopK(*aux.TopK)
	}
	return nil
}

// MarshalJSON writes topK when it is non-zero or was set explicitly.
func (q QueryRequest) MarshalJSON() ([]byte, error) {
	type plain QueryRequest
	aux := struct {
		plain
		TopK *int `json:"topK,omitempty"`
	}{plain: plain(q)}
	if q.TopK != 0 || q.topKSet {
		k := q.TopK
		aux.TopK = &k
	}
	return json.Marshal(aux)
}

// Validate checks the request and fills defaults. An unset TopK becomes
// defaultTopK; a set one must lie in [1, maxTopK].
func (q *QueryRequest) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.TopK == 0 && !q.topKSet {
		q.TopK = defaultTopK
	}
	if q.TopK < 1 || q.TopK > maxTopK {
		return fmt.Errorf("%w: topK must be between 1 and %d, got %d", ErrInvalidQuery, maxTopK, q.TopK)
	}
	return nil
}

// Match is one ranked chunk returned by a query.
type Match struct {
	Score      float64 `json:"score"`
	DocID      string  `json:"docId"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
}

// QueryResponse is the response for a query request.
type QueryResponse struct {
	Matches []Match `json:"matches"`
}
