package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/logger"
	"github.com/rowan/attest/internal/repository"
)

// ProgressFunc is invoked after each evidence item with a current/total
// counter. It must not block for long; the synthesizer's loop waits on it.
type ProgressFunc func(current, total int)

// DecisionFunc is invoked once per evidence item with a human-readable label
// and the created/updated tag, feeding the job's highlight list.
type DecisionFunc func(kind domain.HighlightKind, label string)

// SynthesisResult holds the outcome counts of a synthesis run.
type SynthesisResult struct {
	ClaimsCreated int
	ClaimsUpdated int
}

// matchFinder is the slice of MatcherService the synthesizer consumes.
type matchFinder interface {
	Match(ctx context.Context, ownerID string, vector []float32, types []domain.ClaimType, threshold float32, limit int) ([]ClaimMatch, error)
}

// claimWriter is the slice of ClaimRepository the synthesizer consumes.
type claimWriter interface {
	Create(ctx context.Context, claim *domain.Claim) error
	UpdateConfidence(ctx context.Context, id string, confidence float64) error
	Link(ctx context.Context, link *domain.ClaimEvidence) error
	Delete(ctx context.Context, id string) error
}

// claimVectorWriter is the slice of QdrantRepository the synthesizer consumes.
type claimVectorWriter interface {
	UpsertClaim(ctx context.Context, claimID string, vector []float32, payload *repository.ClaimPayload) error
	UpdateConfidence(ctx context.Context, claimID string, confidence float64) error
	Delete(ctx context.Context, claimID string) error
}

// compatibleClaimTypes restricts which existing claims an evidence item may
// merge into. An accomplishment can corroborate either an achievement or a
// skill claim; every other evidence type maps to a single claim type.
var compatibleClaimTypes = map[domain.EvidenceType][]domain.ClaimType{
	domain.EvidenceTypeAccomplishment: {domain.ClaimTypeAchievement, domain.ClaimTypeSkill},
	domain.EvidenceTypeSkillListed:    {domain.ClaimTypeSkill},
	domain.EvidenceTypeTraitIndicator: {domain.ClaimTypeAttribute},
	domain.EvidenceTypeEducation:      {domain.ClaimTypeEducation},
	domain.EvidenceTypeCertification:  {domain.ClaimTypeCertification},
}

// seedClaimType is the claim type a brand-new claim takes from its seeding
// evidence item.
var seedClaimType = map[domain.EvidenceType]domain.ClaimType{
	domain.EvidenceTypeAccomplishment: domain.ClaimTypeAchievement,
	domain.EvidenceTypeSkillListed:    domain.ClaimTypeSkill,
	domain.EvidenceTypeTraitIndicator: domain.ClaimTypeAttribute,
	domain.EvidenceTypeEducation:      domain.ClaimTypeEducation,
	domain.EvidenceTypeCertification:  domain.ClaimTypeCertification,
}

// SynthesizerConfig holds the tunable merge policy.
type SynthesizerConfig struct {
	MergeThreshold    float32
	InitialConfidence float64
	ConfidenceBoost   float64
	MaxMatches        int
}

// SynthesizerService merges embedded evidence into the owner's claim set:
// per item, either strengthen the nearest compatible claim or create a new
// one seeded from the evidence.
type SynthesizerService struct {
	matcher matchFinder
	claims  claimWriter
	vectors claimVectorWriter
	cfg     SynthesizerConfig
}

// NewSynthesizerService creates a new synthesizer.
func NewSynthesizerService(matcher matchFinder, claims claimWriter, vectors claimVectorWriter, cfg SynthesizerConfig) *SynthesizerService {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 3
	}
	return &SynthesizerService{
		matcher: matcher,
		claims:  claims,
		vectors: vectors,
		cfg:     cfg,
	}
}

// Synthesize processes a batch of persisted, embedded evidence rows.
// Progress and decision callbacks fire per item. On a mid-batch error the
// partial counts accumulated so far are returned together with the error;
// the caller downgrades it to a job warning because the evidence itself is
// already durable.
func (s *SynthesizerService) Synthesize(ctx context.Context, ownerID string, items []domain.Evidence, onProgress ProgressFunc, onDecision DecisionFunc) (SynthesisResult, error) {
	log := logger.FromContext(ctx)
	result := SynthesisResult{}
	total := len(items)

	for i, ev := range items {
		types := compatibleClaimTypes[ev.Type]

		matches, err := s.matcher.Match(ctx, ownerID, ev.Embedding, types, s.cfg.MergeThreshold, s.cfg.MaxMatches)
		if err != nil {
			return result, fmt.Errorf("matching evidence %s: %w", ev.ID, err)
		}

		if len(matches) > 0 {
			top := matches[0]
			if err := s.strengthen(ctx, &top, &ev); err != nil {
				return result, err
			}
			result.ClaimsUpdated++
			if onDecision != nil {
				onDecision(domain.HighlightUpdated, top.Label)
			}
		} else {
			claim, err := s.seed(ctx, ownerID, &ev)
			if err != nil {
				return result, err
			}
			result.ClaimsCreated++
			if onDecision != nil {
				onDecision(domain.HighlightCreated, claim.Label)
			}
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	log.WithFields(logger.Fields{
		logger.FieldOwnerID: ownerID,
		logger.FieldCount:   total,
	}).Infof("synthesis done: %d created, %d updated", result.ClaimsCreated, result.ClaimsUpdated)

	return result, nil
}

// strengthen links the evidence to an existing claim and raises its
// confidence. Confidence never decreases: the update moves it a fraction of
// the remaining headroom toward 1.0, scaled by match similarity.
func (s *SynthesizerService) strengthen(ctx context.Context, match *ClaimMatch, ev *domain.Evidence) error {
	confidence := raiseConfidence(match.Confidence, float64(match.Similarity), s.cfg.ConfidenceBoost)

	if err := s.claims.UpdateConfidence(ctx, match.ClaimID, confidence); err != nil {
		return fmt.Errorf("updating claim %s confidence: %w", match.ClaimID, err)
	}
	if err := s.vectors.UpdateConfidence(ctx, match.ClaimID, confidence); err != nil {
		return fmt.Errorf("updating claim %s vector payload: %w", match.ClaimID, err)
	}

	link := &domain.ClaimEvidence{
		ID:         uuid.New().String(),
		ClaimID:    match.ClaimID,
		EvidenceID: ev.ID,
		Strength:   linkStrength(match.Similarity),
	}
	if err := s.claims.Link(ctx, link); err != nil {
		return fmt.Errorf("linking evidence %s to claim %s: %w", ev.ID, match.ClaimID, err)
	}

	return nil
}

// seed creates a new claim from an evidence item no existing claim was
// similar enough to absorb. A claim row without a vector point is invisible
// to matching, so a partial write is rolled back rather than left behind
// where it would shadow future merges.
func (s *SynthesizerService) seed(ctx context.Context, ownerID string, ev *domain.Evidence) (*domain.Claim, error) {
	log := logger.FromContext(ctx)

	claim := &domain.Claim{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Type:        seedClaimType[ev.Type],
		Label:       claimLabel(ev.Text),
		Description: ev.Text,
		Confidence:  s.cfg.InitialConfidence,
		Embedding:   ev.Embedding,
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	payload := &repository.ClaimPayload{
		ClaimID:    claim.ID,
		OwnerID:    ownerID,
		ClaimType:  string(claim.Type),
		Label:      claim.Label,
		Confidence: claim.Confidence,
	}
	if err := s.vectors.UpsertClaim(ctx, claim.ID, ev.Embedding, payload); err != nil {
		// Rollback: remove the claim row so the owner's claim set never
		// holds a claim that matching cannot see
		if delErr := s.claims.Delete(ctx, claim.ID); delErr != nil {
			log.WithField("claim_id", claim.ID).WithError(delErr).
				Error("failed to rollback claim row after vector upsert failure")
		}
		return nil, fmt.Errorf("upserting claim vector: %w", err)
	}

	// The seeding evidence is by definition the claim's strongest support
	link := &domain.ClaimEvidence{
		ID:         uuid.New().String(),
		ClaimID:    claim.ID,
		EvidenceID: ev.ID,
		Strength:   domain.LinkStrengthStrong,
	}
	if err := s.claims.Link(ctx, link); err != nil {
		// Rollback both writes; an unlinked claim has no grounding
		if delErr := s.vectors.Delete(ctx, claim.ID); delErr != nil {
			log.WithField("claim_id", claim.ID).WithError(delErr).
				Error("failed to rollback claim vector after link failure")
		}
		if delErr := s.claims.Delete(ctx, claim.ID); delErr != nil {
			log.WithField("claim_id", claim.ID).WithError(delErr).
				Error("failed to rollback claim row after link failure")
		}
		return nil, fmt.Errorf("linking seed evidence: %w", err)
	}

	return claim, nil
}

// raiseConfidence moves confidence toward 1.0 by boost*similarity of the
// remaining headroom, so repeated corroboration has diminishing returns and
// the result never exceeds 1.0 or drops below the prior value.
func raiseConfidence(current, similarity, boost float64) float64 {
	next := current + boost*similarity*(1-current)
	if next > 1.0 {
		return 1.0
	}
	if next < current {
		return current
	}
	return next
}

// linkStrength maps match similarity to the qualitative strength tag used by
// downstream grounding checks.
func linkStrength(similarity float32) domain.LinkStrength {
	switch {
	case similarity >= 0.92:
		return domain.LinkStrengthStrong
	case similarity >= 0.85:
		return domain.LinkStrengthMedium
	default:
		return domain.LinkStrengthWeak
	}
}

// claimLabel derives a short display label from evidence text, cutting at a
// word boundary.
func claimLabel(text string) string {
	const maxLabel = 80

	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxLabel {
		return string(runes)
	}

	cut := string(runes[:maxLabel])
	if idx := strings.LastIndex(cut, " "); idx > maxLabel/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
