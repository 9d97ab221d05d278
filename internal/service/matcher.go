package service

import (
	"context"
	"fmt"

	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/repository"
)

// claimSearcher is the slice of QdrantRepository the matcher consumes.
type claimSearcher interface {
	SearchClaims(ctx context.Context, ownerID string, vector []float32, types []domain.ClaimType, topK int) ([]repository.ClaimSearchResult, error)
}

// ClaimMatch is one existing claim ranked by similarity to a query vector.
type ClaimMatch struct {
	ClaimID    string           `json:"claim_id"`
	Type       domain.ClaimType `json:"type"`
	Label      string           `json:"label"`
	Confidence float64          `json:"confidence"`
	Similarity float32          `json:"similarity"`
}

// MatcherService finds an owner's existing claims nearest to a query vector.
// It is pure plumbing over the vector store, but its threshold is the single
// most important tuning parameter in the system: too low and unrelated
// evidence merges into existing claims, too high and near-duplicate claims
// proliferate. Shared by claim synthesis and requirement scoring.
type MatcherService struct {
	searcher claimSearcher
}

// NewMatcherService creates a new matcher.
func NewMatcherService(searcher claimSearcher) *MatcherService {
	return &MatcherService{searcher: searcher}
}

// Match returns the owner's claims most similar to the query vector,
// restricted to the given claim types (empty means all), ordered by
// descending similarity, with results below threshold filtered out.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner whose claims are searched.
//   - vector: query embedding.
//   - types: acceptable claim types; empty means all.
//   - threshold: minimum cosine similarity to include.
//   - limit: maximum number of results.
//
// Returns:
//   - []ClaimMatch: ranked matches, possibly empty.
//   - error: non-nil if the search fails.
func (m *MatcherService) Match(ctx context.Context, ownerID string, vector []float32, types []domain.ClaimType, threshold float32, limit int) ([]ClaimMatch, error) {
	if limit <= 0 {
		limit = 3
	}

	results, err := m.searcher.SearchClaims(ctx, ownerID, vector, types, limit)
	if err != nil {
		return nil, fmt.Errorf("claim search failed: %w", err)
	}

	matches := make([]ClaimMatch, 0, len(results))
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		if r.Payload == nil {
			// Point without payload cannot be attributed; skip it
			continue
		}
		matches = append(matches, ClaimMatch{
			ClaimID:    r.Payload.ClaimID,
			Type:       domain.ClaimType(r.Payload.ClaimType),
			Label:      r.Payload.Label,
			Confidence: r.Payload.Confidence,
			Similarity: r.Score,
		})
	}

	return matches, nil
}
