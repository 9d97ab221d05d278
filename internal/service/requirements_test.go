package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rowan/attest/internal/domain"
)

func TestScoreMarksMetAndUnmet(t *testing.T) {
	matcher := &fakeMatcher{queue: [][]ClaimMatch{
		{{ClaimID: "claim-1", Type: domain.ClaimTypeSkill, Label: "Kubernetes", Confidence: 0.8, Similarity: 0.88}},
		nil, // second requirement finds nothing
	}}
	svc := NewRequirementsService(&fakeEmbedder{}, matcher, 0.70)

	scores, err := svc.Score(context.Background(), "owner-1", []string{
		"5 years of Kubernetes experience",
		"fluent in Mandarin",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}

	if !scores[0].Met || scores[0].ClaimID != "claim-1" || scores[0].Similarity != 0.88 {
		t.Errorf("unexpected met score: %+v", scores[0])
	}
	if scores[1].Met || scores[1].ClaimID != "" {
		t.Errorf("second requirement should be unmet: %+v", scores[1])
	}
	if scores[1].Requirement != "fluent in Mandarin" {
		t.Errorf("requirement text not echoed: %q", scores[1].Requirement)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	svc := NewRequirementsService(&fakeEmbedder{}, &fakeMatcher{}, 0.70)

	scores, err := svc.Score(context.Background(), "owner-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %+v", scores)
	}
}

func TestScoreEmbeddingFailure(t *testing.T) {
	svc := NewRequirementsService(&fakeEmbedder{err: errors.New("rate limited")}, &fakeMatcher{}, 0.70)

	if _, err := svc.Score(context.Background(), "owner-1", []string{"some requirement"}); err == nil {
		t.Fatal("expected error")
	}
}
