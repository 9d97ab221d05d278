package service

import (
	"context"
	"fmt"

	"github.com/rowan/attest/internal/domain"
)

// RequirementScore is the outcome of scoring one opportunity requirement
// against the owner's claim set.
type RequirementScore struct {
	Requirement string           `json:"requirement"`
	Met         bool             `json:"met"`
	ClaimID     string           `json:"claim_id,omitempty"`
	ClaimType   domain.ClaimType `json:"claim_type,omitempty"`
	Label       string           `json:"label,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	Similarity  float32          `json:"similarity,omitempty"`
}

// RequirementsService scores free-text opportunity requirements against an
// owner's claims. It reuses the same matching primitive as synthesis, with
// a looser threshold and no claim-type restriction.
type RequirementsService struct {
	embedder  batchEmbedder
	matcher   matchFinder
	threshold float32
}

// NewRequirementsService creates a new requirement scorer.
func NewRequirementsService(embedder batchEmbedder, matcher matchFinder, threshold float32) *RequirementsService {
	return &RequirementsService{
		embedder:  embedder,
		matcher:   matcher,
		threshold: threshold,
	}
}

// Score embeds the requirement texts in one batch and matches each against
// the owner's claims, returning the best claim per requirement or an unmet
// marker when nothing clears the scoring threshold.
func (s *RequirementsService) Score(ctx context.Context, ownerID string, requirements []string) ([]RequirementScore, error) {
	if len(requirements) == 0 {
		return []RequirementScore{}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, requirements)
	if err != nil {
		return nil, fmt.Errorf("embedding requirements: %w", err)
	}

	scores := make([]RequirementScore, len(requirements))
	for i, req := range requirements {
		scores[i] = RequirementScore{Requirement: req}

		matches, err := s.matcher.Match(ctx, ownerID, vectors[i], nil, s.threshold, 1)
		if err != nil {
			return nil, fmt.Errorf("matching requirement %d: %w", i, err)
		}
		if len(matches) == 0 {
			continue
		}

		top := matches[0]
		scores[i].Met = true
		scores[i].ClaimID = top.ClaimID
		scores[i].ClaimType = top.Type
		scores[i].Label = top.Label
		scores[i].Confidence = top.Confidence
		scores[i].Similarity = top.Similarity
	}

	return scores, nil
}
