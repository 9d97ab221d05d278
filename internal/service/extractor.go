package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/logger"
	"github.com/rowan/attest/internal/prompts"
)

// ExtractionError indicates the completion service returned content that
// could not be parsed as the expected evidence structure. Fatal to the job.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// completer is the slice of CompletionService the extractor consumes.
type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EvidenceDraft is one extracted evidence item before it is assigned IDs,
// embedded, and persisted.
type EvidenceDraft struct {
	Type    domain.EvidenceType
	Text    string
	Context domain.EvidenceContext
}

// ExtractorService turns raw document text into typed evidence drafts using
// the completion service.
type ExtractorService struct {
	completer completer
	maxChars  int
}

// NewExtractorService creates a new extractor.
// Parameters:
//   - c: completion client.
//   - maxChars: maximum evidence text length; longer items are dropped.
//
// Returns:
//   - *ExtractorService: initialized extractor.
func NewExtractorService(c completer, maxChars int) *ExtractorService {
	if maxChars <= 0 {
		maxChars = 500
	}
	return &ExtractorService{
		completer: c,
		maxChars:  maxChars,
	}
}

type extractedItem struct {
	Type    string                 `json:"type"`
	Text    string                 `json:"text"`
	Context domain.EvidenceContext `json:"context"`
}

type extractionPayload struct {
	Evidence []extractedItem `json:"evidence"`
}

// Extract calls the completion service and parses its output into evidence
// drafts. An unparseable response is a typed *ExtractionError (fatal);
// individual items with empty text, over-length text, or an unrecognized
// type are silently dropped so one bad item never sinks the batch.
func (s *ExtractorService) Extract(ctx context.Context, text string, kind domain.DocumentKind) ([]EvidenceDraft, error) {
	log := logger.FromContext(ctx)

	template := prompts.StoryUserPrompt
	if kind == domain.DocumentKindResume {
		template = prompts.ResumeUserPrompt
	}
	userPrompt := fmt.Sprintf(template, text)

	raw, err := s.completer.Complete(ctx, prompts.ExtractionSystemPrompt, userPrompt)
	if err != nil {
		return nil, &ExtractionError{Reason: "completion call failed", Err: err}
	}

	cleaned := cleanJSONBlock(raw)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ExtractionError{Reason: "response is not valid evidence JSON", Err: err}
	}

	drafts := make([]EvidenceDraft, 0, len(payload.Evidence))
	dropped := 0
	for _, item := range payload.Evidence {
		itemText := strings.TrimSpace(item.Text)
		itemType := domain.EvidenceType(item.Type)

		if itemText == "" || len([]rune(itemText)) > s.maxChars || !domain.KnownEvidenceType(itemType) {
			dropped++
			continue
		}

		drafts = append(drafts, EvidenceDraft{
			Type:    itemType,
			Text:    itemText,
			Context: item.Context,
		})
	}

	if dropped > 0 {
		log.WithField(logger.FieldComponent, "extractor").
			Warnf("dropped %d malformed evidence items of %d", dropped, len(payload.Evidence))
	}

	return drafts, nil
}

// cleanJSONBlock strips markdown code fences the completion service sometimes
// wraps around its JSON output despite instructions not to.
func cleanJSONBlock(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```json")
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}
