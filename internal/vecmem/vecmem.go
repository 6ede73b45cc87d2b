// Package vecmem maintains an in-memory nearest-neighbor index over review
// text embeddings, enriched incrementally as listings are processed and
// queried for cross-listing similarity. Vectors live only for the run.
//
// The index never mixes dimensionalities: when a batch arrives at a new
// embedding dimensionality, the whole index and cache are invalidated and
// rebuilt at the new one — correctness over retained history.
package vecmem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mharish0341/Trustguard/internal/cache"
	"github.com/Mharish0341/Trustguard/pkg/config"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
)

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Backend embeds a batch of texts.
type Backend interface {
	Call(ctx context.Context, reqBody, respBody any) error
}

// Store is the vector memory: an LFU embedding cache in front of a flat
// inner-product index. All mutation is serialized behind one mutex; the
// eviction and rebuild logic is not safe under concurrent mutation.
type Store struct {
	cfg     config.MemoryConfig
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	cache *cache.LFU[[]float32]
	index *flatIndex
}

// New creates an empty Store.
func New(cfg config.MemoryConfig, backend Backend, m *metrics.Metrics) *Store {
	return &Store{
		cfg:     cfg,
		backend: backend,
		metrics: m,
		logger:  slog.Default().With("component", "vecmem"),
		cache:   cache.NewLFU[[]float32](cfg.CacheSize),
	}
}

// Add embeds any texts not already cached and inserts all their vectors
// into the index. Vectors below the minimum dimensionality are rejected
// before insertion; a batch at a new dimensionality resets index and cache.
func (s *Store) Add(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type pair struct {
		text string
		vec  []float32
	}
	pairs := make([]pair, 0, len(texts))
	var misses []string
	for _, t := range texts {
		if t == "" {
			continue
		}
		if vec, ok := s.cache.Get(t); ok {
			pairs = append(pairs, pair{t, vec})
		} else {
			misses = append(misses, t)
		}
	}

	if len(misses) > 0 {
		vecs, err := s.embed(ctx, misses)
		if err != nil {
			if len(pairs) == 0 {
				return err
			}
			s.logger.Warn("embedding batch failed, inserting cached vectors only", "error", err)
		} else {
			for i, t := range misses {
				if i >= len(vecs) {
					break
				}
				if len(vecs[i]) < s.minDim() {
					s.logger.Warn("rejecting undersized embedding", "text_len", len(t), "dim", len(vecs[i]))
					continue
				}
				s.cache.Put(t, vecs[i])
				pairs = append(pairs, pair{t, vecs[i]})
			}
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	// The first vector of the batch fixes the canonical dimensionality.
	canon := len(pairs[0].vec)
	if s.index == nil || s.index.dim != canon {
		s.resetLocked(canon)
		// Re-cache what survived the reset so the pairs being inserted stay
		// retrievable.
		for _, p := range pairs {
			if len(p.vec) == canon {
				s.cache.Put(p.text, p.vec)
			}
		}
	}
	for _, p := range pairs {
		if len(p.vec) != canon {
			continue
		}
		s.index.add(p.vec, p.text)
	}
	if s.metrics != nil {
		s.metrics.VectorIndexSize.Set(float64(s.index.len()))
	}
	return nil
}

// Similar returns up to k (similarity, text) matches for texts previously
// added, ranked by descending similarity. An empty index or a query whose
// embedding dimensionality mismatches the index yields no matches.
func (s *Store) Similar(ctx context.Context, query string, k int) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil || s.index.len() == 0 {
		return nil, nil
	}
	vec, ok := s.cache.Get(query)
	if !ok {
		vecs, err := s.embed(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 || len(vecs[0]) < s.minDim() {
			return nil, fmt.Errorf("query embedding rejected")
		}
		vec = vecs[0]
		s.cache.Put(query, vec)
	}
	if len(vec) != s.index.dim {
		return nil, nil
	}
	return s.index.search(vec, k), nil
}

// Len returns the number of vectors currently indexed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return 0
	}
	return s.index.len()
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	if err := s.backend.Call(ctx, embedRequest{Model: s.cfg.Model, Texts: texts}, &resp); err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	return resp.Vectors, nil
}

func (s *Store) minDim() int {
	if s.cfg.MinDim <= 0 {
		return 64
	}
	return s.cfg.MinDim
}

func (s *Store) resetLocked(dim int) {
	s.logger.Info("rebuilding vector index", "dim", dim)
	s.index = newFlatIndex(dim)
	s.cache.Clear()
	if s.metrics != nil {
		s.metrics.VectorIndexRebuilds.Inc()
		s.metrics.VectorIndexSize.Set(0)
	}
}
