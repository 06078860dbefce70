package embed

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Mock is a deterministic embedder for testing. Vectors are derived from a
// hash of the input text, so identical text always embeds identically.
type Mock struct {
	dimensions int
	model      string

	mu sync.Mutex
	// Fixed allows tests to pin exact vectors for specific texts.
	fixed map[string][]float32
	// Fail makes Embed return an error for specific texts.
	fail map[string]error

	// EmbedCalls counts how many texts have been embedded.
	EmbedCalls int
}

// NewMock creates a new mock embedder.
func NewMock(dimensions int) *Mock {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &Mock{
		dimensions: dimensions,
		model:      "mock-embedder",
		fixed:      make(map[string][]float32),
		fail:       make(map[string]error),
	}
}

// SetVector pins the vector returned for a given text.
func (m *Mock) SetVector(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = vector
}

// SetError makes embedding the given text fail.
func (m *Mock) SetError(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[text] = err
}

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EmbedCalls++
	if err, ok := m.fail[text]; ok {
		return nil, err
	}
	if v, ok := m.fixed[text]; ok {
		return v, nil
	}
	return hashVector(text, m.dimensions), nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *Mock) Model() string {
	return m.model
}

func (m *Mock) Dimensions() int {
	return m.dimensions
}

// hashVector generates a deterministic unit vector from a text hash.
func hashVector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, dimensions)
	var norm float64
	for i := 0; i < dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed)) / float64(math.MaxInt64)
		vector[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

// Ensure Mock implements Service.
var _ Service = (*Mock)(nil)
