package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rowan/attest/internal/domain"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.response, f.err
}

func TestExtractParsesEvidence(t *testing.T) {
	raw := `{"evidence":[
		{"type":"skill_listed","text":"Kubernetes","context":{}},
		{"type":"accomplishment","text":"Led a 5-person platform team through a cloud migration","context":{"role":"Tech Lead","company":"Acme"}}
	]}`

	extractor := NewExtractorService(&fakeCompleter{response: raw}, 500)
	drafts, err := extractor.Extract(context.Background(), "some resume text", domain.DocumentKindResume)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Type != domain.EvidenceTypeSkillListed || drafts[0].Text != "Kubernetes" {
		t.Errorf("unexpected first draft: %+v", drafts[0])
	}
	if drafts[1].Context.Role != "Tech Lead" || drafts[1].Context.Company != "Acme" {
		t.Errorf("context not carried through: %+v", drafts[1].Context)
	}
}

func TestExtractStripsCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{
			name:     "bare json",
			response: `{"evidence":[{"type":"education","text":"BSc Computer Science","context":{}}]}`,
		},
		{
			name:     "json fence",
			response: "```json\n{\"evidence\":[{\"type\":\"education\",\"text\":\"BSc Computer Science\",\"context\":{}}]}\n```",
		},
		{
			name:     "plain fence",
			response: "```\n{\"evidence\":[{\"type\":\"education\",\"text\":\"BSc Computer Science\",\"context\":{}}]}\n```",
		},
		{
			name:     "fence with surrounding whitespace",
			response: "\n  ```json\n{\"evidence\":[{\"type\":\"education\",\"text\":\"BSc Computer Science\",\"context\":{}}]}\n```  \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractorService(&fakeCompleter{response: tt.response}, 500)
			drafts, err := extractor.Extract(context.Background(), "text about my degree", domain.DocumentKindStory)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(drafts) != 1 || drafts[0].Text != "BSc Computer Science" {
				t.Errorf("unexpected drafts: %+v", drafts)
			}
		})
	}
}

func TestExtractUnparseableResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "prose", response: "I could not find any evidence in this text."},
		{name: "truncated json", response: `{"evidence":[{"type":"skill_listed"`},
		{name: "completion error", response: "", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractorService(&fakeCompleter{response: tt.response, err: tt.err}, 500)
			_, err := extractor.Extract(context.Background(), "some text", domain.DocumentKindStory)
			if err == nil {
				t.Fatal("expected error")
			}
			var extErr *ExtractionError
			if !errors.As(err, &extErr) {
				t.Errorf("expected *ExtractionError, got %T: %v", err, err)
			}
		})
	}
}

func TestExtractDropsMalformedItems(t *testing.T) {
	raw := `{"evidence":[
		{"type":"skill_listed","text":"Terraform","context":{}},
		{"type":"skill_listed","text":"","context":{}},
		{"type":"skill_listed","text":"   ","context":{}},
		{"type":"hobby","text":"collects vinyl","context":{}},
		{"type":"accomplishment","text":"` + strings.Repeat("x", 600) + `","context":{}}
	]}`

	extractor := NewExtractorService(&fakeCompleter{response: raw}, 500)
	drafts, err := extractor.Extract(context.Background(), "some text", domain.DocumentKindStory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(drafts) != 1 {
		t.Fatalf("expected only the valid item to survive, got %d", len(drafts))
	}
	if drafts[0].Text != "Terraform" {
		t.Errorf("wrong surviving item: %+v", drafts[0])
	}
}

func TestExtractLengthBoundCountsRunes(t *testing.T) {
	// 450 runes but 900 bytes: within the bound, must survive
	kept := strings.Repeat("é", 450)
	// 501 runes: over the bound regardless of encoding
	dropped := strings.Repeat("é", 501)

	raw := `{"evidence":[
		{"type":"skill_listed","text":"` + kept + `","context":{}},
		{"type":"skill_listed","text":"` + dropped + `","context":{}}
	]}`

	extractor := NewExtractorService(&fakeCompleter{response: raw}, 500)
	drafts, err := extractor.Extract(context.Background(), "some text", domain.DocumentKindStory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].Text != kept {
		t.Error("multi-byte item within the rune bound was dropped")
	}
}

func TestExtractEmptyEvidenceList(t *testing.T) {
	extractor := NewExtractorService(&fakeCompleter{response: `{"evidence":[]}`}, 500)
	drafts, err := extractor.Extract(context.Background(), "nothing useful here", domain.DocumentKindStory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("expected no drafts, got %d", len(drafts))
	}
}

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence no language", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "one line fence", in: "```json{\"a\":1}```", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONBlock(tt.in); got != tt.want {
				t.Errorf("cleanJSONBlock(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
