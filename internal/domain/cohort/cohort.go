package cohort

import "github.com/kailas-cloud/voicegate/internal/domain/embedding"

// Neighbor is a cohort embedding returned by a nearest-neighbour query.
type Neighbor struct {
	Ref        string
	Similarity float64
	Embedding  embedding.Vector
}

// Entry is a cohort embedding to be indexed.
type Entry struct {
	Ref    string
	Vector embedding.Vector
}

// Embeddings returns the neighbour vectors in order.
func Embeddings(ns []Neighbor) []embedding.Vector {
	out := make([]embedding.Vector, len(ns))
	for i, n := range ns {
		out[i] = n.Embedding
	}
	return out
}
