package plda

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidModel signals a malformed PLDA artifact.
var ErrInvalidModel = errors.New("invalid plda model")

// eigenFloor is the smallest eigenvalue treated as non-zero.
const eigenFloor = 1e-10

// Model is a PLDA model in its simultaneously diagonalised form: T maps a
// centred embedding into a space where the within-class covariance is I and
// the between-class covariance is diag(psi). Immutable after construction.
type Model struct {
	dim       int
	mean      []float64
	transform matrix
	psi       []float64
	scale     float64

	// per-dimension constants of the closed-form score
	cross  []float64
	square []float64
	bias   float64
}

// NewDiagonal builds a model from an already diagonalised artifact.
// transform is dim×dim row-major, rows are output dimensions.
func NewDiagonal(mean []float64, transform [][]float64, psi []float64, scale float64) (*Model, error) {
	dim := len(mean)
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty mean", ErrInvalidModel)
	}
	if len(psi) != dim {
		return nil, fmt.Errorf("%w: psi has %d entries, mean has %d", ErrInvalidModel, len(psi), dim)
	}
	t, err := squareFrom(transform, dim, "transform")
	if err != nil {
		return nil, err
	}
	for i, p := range psi {
		if !finite(p) || p < 0 {
			return nil, fmt.Errorf("%w: psi[%d] = %v", ErrInvalidModel, i, p)
		}
	}
	return build(mean, t, psi, scale)
}

// NewTwoCovariance builds a model from the two-covariance parameterisation:
// between-class loading F (dim×rank) and within-class covariance Sigma (dim×dim).
// B = F·Fᵀ and W = Sigma are diagonalised simultaneously at construction.
func NewTwoCovariance(mean []float64, f [][]float64, sigma [][]float64, scale float64) (*Model, error) {
	dim := len(mean)
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty mean", ErrInvalidModel)
	}
	if len(f) != dim {
		return nil, fmt.Errorf("%w: F has %d rows, mean has %d", ErrInvalidModel, len(f), dim)
	}
	rank := len(f[0])
	if rank == 0 {
		return nil, fmt.Errorf("%w: F has no columns", ErrInvalidModel)
	}
	for i, row := range f {
		if len(row) != rank {
			return nil, fmt.Errorf("%w: F row %d has %d columns, expected %d", ErrInvalidModel, i, len(row), rank)
		}
		for j, x := range row {
			if !finite(x) {
				return nil, fmt.Errorf("%w: F[%d][%d] is not finite", ErrInvalidModel, i, j)
			}
		}
	}
	w, err := squareFrom(sigma, dim, "Sigma")
	if err != nil {
		return nil, err
	}

	b := newMatrix(dim)
	for i := range dim {
		for j := range dim {
			var s float64
			for k := range rank {
				s += f[i][k] * f[j][k]
			}
			b.set(i, j, s)
		}
	}

	t, psi, err := diagonalize(b, w)
	if err != nil {
		return nil, err
	}
	return build(mean, t, psi, scale)
}

// diagonalize finds T with T·W·Tᵀ = I and T·B·Tᵀ = diag(psi).
func diagonalize(b, w matrix) (matrix, []float64, error) {
	w.symmetrize()
	wVals, wVecs, err := eigenSymmetric(w)
	if err != nil {
		return matrix{}, nil, fmt.Errorf("%w: within-class covariance: %w", ErrInvalidModel, err)
	}
	n := w.n

	// whitening P = Λ^{-1/2}·Vᵀ so that P·W·Pᵀ = I
	p := newMatrix(n)
	for i := range n {
		if wVals[i] <= eigenFloor {
			return matrix{}, nil, fmt.Errorf("%w: within-class covariance is not positive definite", ErrInvalidModel)
		}
		inv := 1 / math.Sqrt(wVals[i])
		for j := range n {
			p.set(i, j, inv*wVecs.at(j, i))
		}
	}

	bw := p.mul(b).mul(p.transpose())
	bw.symmetrize()
	psi, q, err := eigenSymmetric(bw)
	if err != nil {
		return matrix{}, nil, fmt.Errorf("%w: between-class covariance: %w", ErrInvalidModel, err)
	}
	for i, v := range psi {
		if v < eigenFloor {
			psi[i] = 0
		}
	}
	return q.transpose().mul(p), psi, nil
}

func build(mean []float64, t matrix, psi []float64, scale float64) (*Model, error) {
	if !finite(scale) || scale <= 0 {
		return nil, fmt.Errorf("%w: scaling factor %v", ErrInvalidModel, scale)
	}
	for i, x := range mean {
		if !finite(x) {
			return nil, fmt.Errorf("%w: mean[%d] is not finite", ErrInvalidModel, i)
		}
	}

	dim := len(mean)
	m := &Model{
		dim:       dim,
		mean:      append([]float64(nil), mean...),
		transform: t,
		psi:       append([]float64(nil), psi...),
		scale:     scale,
		cross:     make([]float64, dim),
		square:    make([]float64, dim),
	}
	for k, p := range m.psi {
		m.cross[k] = p / (2*p + 1)
		m.square[k] = p * p / (2 * (p + 1) * (2*p + 1))
		m.bias += math.Log(p+1) - 0.5*math.Log(2*p+1)
	}
	return m, nil
}

func squareFrom(rows [][]float64, dim int, name string) (matrix, error) {
	if len(rows) != dim {
		return matrix{}, fmt.Errorf("%w: %s has %d rows, expected %d", ErrInvalidModel, name, len(rows), dim)
	}
	m := newMatrix(dim)
	for i, row := range rows {
		if len(row) != dim {
			return matrix{}, fmt.Errorf("%w: %s row %d has %d columns, expected %d",
				ErrInvalidModel, name, i, len(row), dim)
		}
		for j, x := range row {
			if !finite(x) {
				return matrix{}, fmt.Errorf("%w: %s[%d][%d] is not finite", ErrInvalidModel, name, i, j)
			}
			m.set(i, j, x)
		}
	}
	return m, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Dim returns the embedding dimensionality the model expects.
func (m *Model) Dim() int { return m.dim }

// Psi returns a copy of the between-class eigenvalues.
func (m *Model) Psi() []float64 { return append([]float64(nil), m.psi...) }

// ScalingFactor returns the score scaling factor.
func (m *Model) ScalingFactor() float64 { return m.scale }
