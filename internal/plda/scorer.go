package plda

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

// Projection is an embedding mapped into the model's diagonal space.
type Projection struct {
	u []float64
}

// Project centres v on the model mean and maps it through the diagonalising transform.
func (m *Model) Project(v embedding.Vector) (Projection, error) {
	values := v.Values()
	if len(values) != m.dim {
		return Projection{}, fmt.Errorf("%w: dimension %d, model expects %d",
			domain.ErrInvalidEmbedding, len(values), m.dim)
	}
	centred := make([]float64, m.dim)
	for i, x := range values {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Projection{}, fmt.Errorf("%w: non-finite value at index %d", domain.ErrInvalidEmbedding, i)
		}
		centred[i] = f - m.mean[i]
	}
	u := make([]float64, m.dim)
	for k := range m.dim {
		row := m.transform.data[k*m.dim : (k+1)*m.dim]
		var s float64
		for i, c := range centred {
			s += row[i] * c
		}
		u[k] = s
	}
	return Projection{u: u}, nil
}

// ScoreProjected returns the log-likelihood ratio of two projected embeddings.
// Projections must come from the same model.
func (m *Model) ScoreProjected(a, b Projection) float64 {
	var s float64
	for k := range m.dim {
		u, v := a.u[k], b.u[k]
		// u*v before scaling keeps Score(a, b) == Score(b, a) bit for bit.
		s += m.cross[k]*(u*v) - m.square[k]*(u*u+v*v)
	}
	return (s + m.bias) * m.scale
}

// Score returns the PLDA log-likelihood ratio that a and b share a speaker.
// Symmetric in its arguments; higher means more likely the same speaker.
func (m *Model) Score(a, b embedding.Vector) (float64, error) {
	pa, err := m.Project(a)
	if err != nil {
		return 0, err
	}
	pb, err := m.Project(b)
	if err != nil {
		return 0, err
	}
	return m.ScoreProjected(pa, pb), nil
}
