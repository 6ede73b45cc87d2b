package vecmem

import "sort"

// flatIndex is an exact nearest-neighbor index over normalized vectors using
// inner-product similarity. It holds one fixed dimensionality at a time; the
// Store rebuilds it wholesale when the dimensionality changes.
type flatIndex struct {
	dim     int
	vectors [][]float32
	texts   []string
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (ix *flatIndex) len() int {
	return len(ix.vectors)
}

// add appends a vector; the caller guarantees len(vec) == ix.dim.
func (ix *flatIndex) add(vec []float32, text string) {
	ix.vectors = append(ix.vectors, vec)
	ix.texts = append(ix.texts, text)
}

// Match is one similarity hit.
type Match struct {
	Score float64
	Text  string
}

// search returns up to k matches ranked by descending inner product.
func (ix *flatIndex) search(query []float32, k int) []Match {
	if len(ix.vectors) == 0 || len(query) != ix.dim || k <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(ix.vectors))
	for i, vec := range ix.vectors {
		matches = append(matches, Match{
			Score: dot(query, vec),
			Text:  ix.texts[i],
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
