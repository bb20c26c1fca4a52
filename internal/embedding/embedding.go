// Package embedding turns text into dense vectors and compares them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrEmptyVector is returned when a provider answers without any values.
var ErrEmptyVector = errors.New("embedding provider returned empty vector")

// Embedder maps a text to a vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Describer is implemented by embedders that can report their backend for logging.
type Describer interface {
	Provider() string
	Model() string
}

// Describe returns provider and model of e when it exposes them.
func Describe(e Embedder) (string, string) {
	if d, ok := e.(Describer); ok {
		return d.Provider(), d.Model()
	}
	return "", ""
}

// Cosine returns the cosine similarity of a and b. Vectors with a zero norm
// have no direction and compare as 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d != %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
