package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	ProviderHashing = "hashing"

	defaultHashingDimensions = 256
)

// Hashing is an offline embedder based on the hashing trick over word
// unigrams and bigrams. Vectors are L2 normalised.
type Hashing struct {
	dims int
}

func NewHashing(dimensions int) *Hashing {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	return &Hashing{dims: dimensions}
}

func (h *Hashing) Provider() string { return ProviderHashing }

func (h *Hashing) Model() string { return "fnv-unigram-bigram" }

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, errors.New("text has no tokens")
	}

	vec := make([]float64, h.dims)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dims)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hashing) add(vec []float64, token string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lower-cases text and splits it into words. '+', '#' and '.' stay
// inside tokens so names like c++, c# and node.js survive.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '.'
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
