package plda

import (
	"errors"
	"math"
)

const (
	jacobiMaxSweeps = 100
	jacobiTolerance = 1e-12
)

// matrix is a dense row-major square matrix.
type matrix struct {
	n    int
	data []float64
}

func newMatrix(n int) matrix {
	return matrix{n: n, data: make([]float64, n*n)}
}

func identity(n int) matrix {
	m := newMatrix(n)
	for i := range n {
		m.set(i, i, 1)
	}
	return m
}

func (m matrix) at(i, j int) float64     { return m.data[i*m.n+j] }
func (m matrix) set(i, j int, v float64) { m.data[i*m.n+j] = v }

func (m matrix) clone() matrix {
	out := matrix{n: m.n, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// mul returns m·o.
func (m matrix) mul(o matrix) matrix {
	out := newMatrix(m.n)
	for i := range m.n {
		for k := range m.n {
			a := m.at(i, k)
			if a == 0 {
				continue
			}
			for j := range m.n {
				out.data[i*m.n+j] += a * o.at(k, j)
			}
		}
	}
	return out
}

// transpose returns mᵀ.
func (m matrix) transpose() matrix {
	out := newMatrix(m.n)
	for i := range m.n {
		for j := range m.n {
			out.set(j, i, m.at(i, j))
		}
	}
	return out
}

// symmetrize replaces m with (m+mᵀ)/2 to remove round-off asymmetry.
func (m matrix) symmetrize() {
	for i := range m.n {
		for j := i + 1; j < m.n; j++ {
			v := 0.5 * (m.at(i, j) + m.at(j, i))
			m.set(i, j, v)
			m.set(j, i, v)
		}
	}
}

// eigenSymmetric decomposes a symmetric matrix as a = V·diag(values)·Vᵀ using
// cyclic Jacobi rotations. Eigenvectors are the columns of V.
func eigenSymmetric(a matrix) ([]float64, matrix, error) {
	n := a.n
	work := a.clone()
	vecs := identity(n)

	var frob float64
	for _, x := range work.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, matrix{}, errors.New("matrix contains non-finite values")
		}
		frob += x * x
	}

	converged := false
	for range jacobiMaxSweeps {
		var off float64
		for p := range n {
			for q := p + 1; q < n; q++ {
				off += 2 * work.at(p, q) * work.at(p, q)
			}
		}
		if off <= jacobiTolerance*jacobiTolerance*frob {
			converged = true
			break
		}

		for p := range n {
			for q := p + 1; q < n; q++ {
				apq := work.at(p, q)
				if math.Abs(apq) < 1e-300 {
					continue
				}
				theta := (work.at(q, q) - work.at(p, p)) / (2 * apq)
				t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				rotate(work, vecs, p, q, c, s)
			}
		}
	}
	if !converged {
		return nil, matrix{}, errors.New("jacobi eigen decomposition did not converge")
	}

	values := make([]float64, n)
	for i := range n {
		values[i] = work.at(i, i)
	}
	return values, vecs, nil
}

// rotate applies the Jacobi rotation J(p,q,c,s): a ← Jᵀ·a·J, v ← v·J.
func rotate(a, v matrix, p, q int, c, s float64) {
	n := a.n
	for k := range n {
		akp, akq := a.at(k, p), a.at(k, q)
		a.set(k, p, c*akp-s*akq)
		a.set(k, q, s*akp+c*akq)
	}
	for k := range n {
		apk, aqk := a.at(p, k), a.at(q, k)
		a.set(p, k, c*apk-s*aqk)
		a.set(q, k, s*apk+c*aqk)
	}
	for k := range n {
		vkp, vkq := v.at(k, p), v.at(k, q)
		v.set(k, p, c*vkp-s*vkq)
		v.set(k, q, s*vkp+c*vkq)
	}
}
