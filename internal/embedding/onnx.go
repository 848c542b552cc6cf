//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/ragapi/pkg/utils"
)

var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// onnxTensors holds the fixed-shape buffers bound to a session. Each Run reads
// the inputs in place and writes the pooled embedding to output.
type onnxTensors struct {
	inputs []*ort.Tensor[int64]
	output *ort.Tensor[float32]
}

func newONNXTensors(maxTokens, dimensions int) (*onnxTensors, error) {
	t := &onnxTensors{}
	shape := ort.NewShape(1, int64(maxTokens))
	for _, name := range onnxInputNames {
		in, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			t.destroy()
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		t.inputs = append(t.inputs, in)
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions)))
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	t.output = out
	return t, nil
}

func (t *onnxTensors) bindings() (in, out []ort.ArbitraryTensor) {
	for _, x := range t.inputs {
		in = append(in, x)
	}
	return in, []ort.ArbitraryTensor{t.output}
}

func (t *onnxTensors) load(ids, mask, types []int64) {
	for i, src := range [][]int64{ids, mask, types} {
		copy(t.inputs[i].GetData(), src)
	}
}

func (t *onnxTensors) destroy() {
	for _, x := range t.inputs {
		_ = x.Destroy()
	}
	t.inputs = nil
	if t.output != nil {
		_ = t.output.Destroy()
		t.output = nil
	}
}

// ONNXEmbedder runs a sentence-transformer model exported to ONNX. It requires
// CGO and the onnxruntime shared library. Outputs are L2-normalised unless
// WithNormalize(false) is given.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	tensors    *onnxTensors
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
	normalize  bool
}

// NewONNXEmbedder loads the model at modelPath. The runtime environment is
// initialised on first use.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int, opts ...LocalOption) (*ONNXEmbedder, error) {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	if err := validateModelPath(modelPath); err != nil {
		return nil, err
	}

	tensors, err := newONNXTensors(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	in, out := tensors.bindings()
	session, err := ort.NewAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, in, out, nil)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	return &ONNXEmbedder{
		session:    session,
		tensors:    tensors,
		tokenizer:  &SimpleTokenizer{},
		dimensions: dimensions,
		maxTokens:  maxTokens,
		normalize:  newLocalOptions(opts).normalize,
	}, nil
}

// Embed runs one inference. Calls are serialised on the shared tensors.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}

	e.tensors.load(e.tokenizer.Tokenize(text, e.maxTokens))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.tensors.output.GetData())
	if e.normalize {
		utils.NormalizeL2(vec)
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.tensors != nil {
		e.tensors.destroy()
		e.tensors = nil
	}
	return err
}
