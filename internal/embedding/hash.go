package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/ragapi/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each lower-cased word is
// hashed into one signed bucket, so texts sharing words score close together.
// It needs no model and is used for tests and offline runs.
type HashEmbedder struct {
	dimensions int
	normalize  bool
}

// NewHashEmbedder returns a hash embedder of the given dimensions (384 when not positive).
func NewHashEmbedder(dimensions int, opts ...LocalOption) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions, normalize: newLocalOptions(opts).normalize}
}

// Embed returns the feature-hash vector of text, unit length unless normalisation is off.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 && text != "" {
		words = []string{text}
	}
	for _, w := range words {
		h := HashToken(w)
		idx := h % uint64(e.dimensions)
		if h>>63 == 0 {
			emb[idx]++
		} else {
			emb[idx]--
		}
	}
	if e.normalize {
		utils.NormalizeL2(emb)
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
