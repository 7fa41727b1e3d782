package embedding

import (
	"errors"
	"fmt"
	"math"

	"github.com/kailas-cloud/voicegate/internal/domain"
)

// Vector is a speaker embedding normalised to unit L2 norm (immutable value object).
type Vector struct {
	values []float32
}

// New validates values and returns their unit-length copy.
// dim > 0 enforces the expected dimensionality.
func New(values []float32, dim int) (Vector, error) {
	if len(values) == 0 {
		return Vector{}, fmt.Errorf("%w: empty vector", domain.ErrInvalidEmbedding)
	}
	if dim > 0 && len(values) != dim {
		return Vector{}, fmt.Errorf("%w: dimension %d, expected %d", domain.ErrInvalidEmbedding, len(values), dim)
	}
	normalized, err := Normalize(values)
	if err != nil {
		return Vector{}, err
	}
	return Vector{values: normalized}, nil
}

// Reconstruct creates a Vector without validation (storage hydration).
func Reconstruct(values []float32) Vector {
	return Vector{values: values}
}

// Values returns the components. Callers must not modify the slice.
func (v Vector) Values() []float32 { return v.values }

// Dim returns the dimensionality.
func (v Vector) Dim() int { return len(v.values) }

// IsZero reports whether the vector is the zero value.
func (v Vector) IsZero() bool { return len(v.values) == 0 }

// Normalize returns a unit-length copy of values.
func Normalize(values []float32) ([]float32, error) {
	var sum float64
	for i, x := range values {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", domain.ErrInvalidEmbedding, i)
		}
		sum += f * f
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero norm", domain.ErrInvalidEmbedding)
	}
	out := make([]float32, len(values))
	for i, x := range values {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Mean returns the unit-length mean of vs, the enrollment centroid.
func Mean(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return Vector{}, errors.New("mean of zero vectors")
	}
	dim := vs[0].Dim()
	acc := make([]float64, dim)
	for i, v := range vs {
		if v.Dim() != dim {
			return Vector{}, fmt.Errorf("%w: sample %d has dimension %d, expected %d",
				domain.ErrInvalidEmbedding, i, v.Dim(), dim)
		}
		for j, x := range v.values {
			acc[j] += float64(x)
		}
	}
	mean := make([]float32, dim)
	n := float64(len(vs))
	for j := range acc {
		mean[j] = float32(acc[j] / n)
	}
	normalized, err := Normalize(mean)
	if err != nil {
		return Vector{}, fmt.Errorf("normalize centroid: %w", err)
	}
	return Vector{values: normalized}, nil
}

// Cosine returns the cosine similarity of a and b, or 0 if dimensions differ.
func Cosine(a, b Vector) float64 {
	if a.Dim() != b.Dim() || a.IsZero() {
		return 0
	}
	var dot, na, nb float64
	for i := range a.values {
		x, y := float64(a.values[i]), float64(b.values[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
