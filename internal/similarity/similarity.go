// Package similarity implements pure vector math over embeddings produced by
// an external embedding engine: cosine similarity, top-k ranking, and
// threshold filtering. All functions are stateless.
package similarity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"mnemos/internal/logging"
)

// Candidate is one ranked entry: an embedding plus the identity and recency
// of the knowledge item it belongs to.
type Candidate struct {
	ID        int64
	Embedding []float32
	UpdatedAt time.Time
}

// Match is one ranking result, descending by Score.
type Match struct {
	ID        int64
	Score     float64
	UpdatedAt time.Time
}

// Cosine calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means
// orthogonal. A zero-magnitude vector yields the 0 sentinel, never a crash;
// a dimension mismatch is an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// Rank scores every candidate against the query and returns at most topK
// matches in descending score order. Candidates scoring below minThreshold
// are excluded, not merely sorted last. Equal scores are broken by the most
// recent UpdatedAt first: recency signals relevance when similarity is equal.
//
// A dimensionality mismatch excludes that one candidate (counted and logged),
// never the whole search.
func Rank(query []float32, candidates []Candidate, topK int, minThreshold float64) []Match {
	if topK <= 0 {
		topK = 10
	}

	matches := make([]Match, 0, len(candidates))
	skipped := 0

	for _, c := range candidates {
		score, err := Cosine(query, c.Embedding)
		if err != nil {
			skipped++
			continue
		}
		if score < minThreshold {
			continue
		}
		matches = append(matches, Match{ID: c.ID, Score: score, UpdatedAt: c.UpdatedAt})
	}

	if skipped > 0 {
		logging.Get(logging.CategoryEmbedding).Warn(
			"Rank: excluded %d/%d candidates due to dimension mismatch (query dim=%d)",
			skipped, len(candidates), len(query))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches
}
