package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/repository"
)

type fakeDocStore struct {
	created       []*domain.Document
	statuses      map[string]domain.DocumentStatus
	archiveKeys   map[string]string
	createErr     error
	archiveKeyErr error
}

func (f *fakeDocStore) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]domain.DocumentStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeDocStore) UpdateArchiveKey(_ context.Context, id string, key string) error {
	if f.archiveKeyErr != nil {
		return f.archiveKeyErr
	}
	if f.archiveKeys == nil {
		f.archiveKeys = make(map[string]string)
	}
	f.archiveKeys[id] = key
	return nil
}

type fakeJobStore struct {
	created []*domain.Job
	saves   int
}

func (f *fakeJobStore) Create(_ context.Context, job *domain.Job) error {
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) Save(_ context.Context, _ *domain.Job) error {
	f.saves++
	return nil
}

type fakeEvidenceStore struct {
	batches [][]domain.Evidence
	err     error
}

func (f *fakeEvidenceStore) CreateBatch(_ context.Context, items []domain.Evidence) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, items)
	return nil
}

type fakeExtractor struct {
	drafts []EvidenceDraft
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ domain.DocumentKind) ([]EvidenceDraft, error) {
	return f.drafts, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i) + 0.5}
	}
	return vectors, nil
}

type fakeSynthesizer struct {
	result SynthesisResult
	err    error
	items  []domain.Evidence
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, items []domain.Evidence, onProgress ProgressFunc, onDecision DecisionFunc) (SynthesisResult, error) {
	f.items = items
	for i := range items {
		if onDecision != nil {
			onDecision(domain.HighlightCreated, items[i].Text)
		}
		if onProgress != nil {
			onProgress(i+1, len(items))
		}
	}
	return f.result, f.err
}

type fakeArchive struct {
	keys     map[string]string
	removed  []string
	preexist bool
	err      error
}

func (f *fakeArchive) SaveText(_ context.Context, fingerprint, text string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	key := "raw/" + fingerprint
	if f.preexist {
		return key, false, nil
	}
	if f.keys == nil {
		f.keys = make(map[string]string)
	}
	f.keys[key] = text
	return key, true, nil
}

func (f *fakeArchive) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeViews struct {
	prefixes []string
}

func (f *fakeViews) InvalidatePrefix(prefix string) {
	f.prefixes = append(f.prefixes, prefix)
}

type orchestratorFixture struct {
	docs     *fakeDocStore
	jobs     *fakeJobStore
	evidence *fakeEvidenceStore
	extract  *fakeExtractor
	embed    *fakeEmbedder
	synth    *fakeSynthesizer
	archive  *fakeArchive
	views    *fakeViews
	svc      *OrchestratorService
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		docs:     &fakeDocStore{},
		jobs:     &fakeJobStore{},
		evidence: &fakeEvidenceStore{},
		extract:  &fakeExtractor{},
		embed:    &fakeEmbedder{},
		synth:    &fakeSynthesizer{},
		archive:  &fakeArchive{},
		views:    &fakeViews{},
	}
	f.svc = NewOrchestratorService(
		f.docs, f.jobs, f.evidence, f.extract, f.embed, f.synth,
		NewJobBroker(), f.archive, f.views,
		OrchestratorConfig{
			StoryMinChars:  10,
			StoryMaxChars:  20000,
			ResumeMinChars: 10,
			ResumeMaxChars: 50000,
			TickerInterval: time.Hour, // never fires in tests
		},
	)
	return f
}

// drainEvents collects stream events until the terminal close, failing the
// test if the pipeline does not finish promptly.
func drainEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var collected []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("timed out waiting for the event stream to close")
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitRequest
		wantMsg string
	}{
		{
			name:    "missing owner",
			req:     SubmitRequest{Text: "a perfectly fine story", Kind: domain.DocumentKindStory},
			wantMsg: "owner id is required",
		},
		{
			name:    "unknown kind",
			req:     SubmitRequest{OwnerID: "owner-1", Text: "a perfectly fine story", Kind: "poem"},
			wantMsg: `unknown document kind "poem"`,
		},
		{
			name:    "story too short",
			req:     SubmitRequest{OwnerID: "owner-1", Text: "short", Kind: domain.DocumentKindStory},
			wantMsg: "at least 10 characters, got 5",
		},
		{
			name:    "story too long",
			req:     SubmitRequest{OwnerID: "owner-1", Text: strings.Repeat("a", 20001), Kind: domain.DocumentKindStory},
			wantMsg: "at most 20000 characters, got 20001",
		},
		{
			name:    "whitespace only counts as empty",
			req:     SubmitRequest{OwnerID: "owner-1", Text: "   \n\n   ", Kind: domain.DocumentKindResume},
			wantMsg: "at least 10 characters, got 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			_, err := f.svc.Submit(context.Background(), &tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(verr.Message, tt.wantMsg) {
				t.Errorf("message %q does not mention %q", verr.Message, tt.wantMsg)
			}
			if len(f.docs.created) != 0 || len(f.jobs.created) != 0 {
				t.Error("validation failure must not create rows")
			}
		})
	}
}

func TestSubmitDuplicatePassthrough(t *testing.T) {
	f := newOrchestratorFixture()
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.docs.createErr = &repository.ErrDuplicateDocument{DocumentID: "doc-0", SubmittedAt: submitted}

	_, err := f.svc.Submit(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "the same story submitted twice",
		Kind:    domain.DocumentKindStory,
	})

	var dup *repository.ErrDuplicateDocument
	if !errors.As(err, &dup) {
		t.Fatalf("expected *ErrDuplicateDocument, got %T: %v", err, err)
	}
	if dup.DocumentID != "doc-0" || !dup.SubmittedAt.Equal(submitted) {
		t.Errorf("duplicate details not preserved: %+v", dup)
	}
	if len(f.jobs.created) != 0 {
		t.Error("no job should be created for a duplicate")
	}
}

func TestSubmitStreamHappyPath(t *testing.T) {
	f := newOrchestratorFixture()
	f.extract.drafts = []EvidenceDraft{
		{Type: domain.EvidenceTypeSkillListed, Text: "Kubernetes"},
		{Type: domain.EvidenceTypeAccomplishment, Text: "Migrated the payment stack to event sourcing"},
	}
	f.synth.result = SynthesisResult{ClaimsCreated: 1, ClaimsUpdated: 1}

	result, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "I migrated the payment stack and run our Kubernetes clusters.",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DocumentID == "" || result.JobID == "" {
		t.Fatalf("identifiers missing: %+v", result)
	}

	collected := drainEvents(t, events)
	last := collected[len(collected)-1]
	if last.Type != EventDone {
		t.Fatalf("expected terminal done event, got %s (%q)", last.Type, last.Message)
	}
	if last.Summary == nil || last.Summary.EvidenceCount != 2 ||
		last.Summary.ClaimsCreated != 1 || last.Summary.ClaimsUpdated != 1 {
		t.Errorf("unexpected summary: %+v", last.Summary)
	}

	var phases []domain.JobPhase
	for _, ev := range collected {
		if ev.Type == EventPhase {
			phases = append(phases, ev.Phase)
		}
	}
	wantPhases := []domain.JobPhase{
		domain.JobPhaseValidating, domain.JobPhaseExtracting,
		domain.JobPhaseEmbeddings, domain.JobPhaseSynthesis,
	}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Fatalf("phases = %v, want %v", phases, wantPhases)
		}
	}

	job := f.jobs.created[0]
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.Phase != "" || job.Progress != "" {
		t.Errorf("terminal job should clear phase/progress, got %q %q", job.Phase, job.Progress)
	}
	if job.EvidenceCount != 2 || job.ClaimsCreated != 1 || job.ClaimsUpdated != 1 {
		t.Errorf("unexpected job counters: %+v", job)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("job timestamps not set")
	}

	if len(job.Highlights) == 0 || !strings.Contains(job.Highlights[0].Message, "Found 2 evidence statements") {
		t.Errorf("missing found highlight: %+v", job.Highlights)
	}

	doc := f.docs.created[0]
	if f.docs.statuses[doc.ID] != domain.DocumentStatusCompleted {
		t.Errorf("document status = %s, want completed", f.docs.statuses[doc.ID])
	}
	if f.docs.archiveKeys[doc.ID] == "" {
		t.Error("archive key was not recorded")
	}

	if len(f.evidence.batches) != 1 || len(f.evidence.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 evidence rows, got %+v", f.evidence.batches)
	}
	for i, ev := range f.evidence.batches[0] {
		if ev.ID == "" || ev.OwnerID != "owner-1" || ev.DocumentID != doc.ID {
			t.Errorf("evidence row %d incomplete: %+v", i, ev)
		}
		if len(ev.Embedding) == 0 {
			t.Errorf("evidence row %d missing embedding", i)
		}
	}

	if len(f.views.prefixes) != 1 || f.views.prefixes[0] != "owner-1:" {
		t.Errorf("cached views not invalidated: %v", f.views.prefixes)
	}
}

func TestSubmitStreamExtractionFailure(t *testing.T) {
	f := newOrchestratorFixture()
	f.extract.err = &ExtractionError{Reason: "response is not valid evidence JSON"}

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	last := collected[len(collected)-1]
	if last.Type != EventError {
		t.Fatalf("expected terminal error event, got %s", last.Type)
	}
	if !strings.Contains(last.Message, "extraction failed") {
		t.Errorf("error message %q does not name the failure", last.Message)
	}

	job := f.jobs.created[0]
	if job.Status != domain.JobStatusFailed || job.Error == "" || job.CompletedAt == nil {
		t.Errorf("job not marked failed: %+v", job)
	}

	doc := f.docs.created[0]
	if f.docs.statuses[doc.ID] != domain.DocumentStatusFailed {
		t.Errorf("document status = %s, want failed", f.docs.statuses[doc.ID])
	}
	if len(f.evidence.batches) != 0 {
		t.Error("no evidence should be stored on extraction failure")
	}
}

func TestSubmitStreamEmbeddingFailureStoresNoEvidence(t *testing.T) {
	f := newOrchestratorFixture()
	f.extract.drafts = []EvidenceDraft{{Type: domain.EvidenceTypeSkillListed, Text: "Go"}}
	f.embed.err = errors.New("embedding provider unavailable")

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	last := collected[len(collected)-1]
	if last.Type != EventError {
		t.Fatalf("expected terminal error event, got %s", last.Type)
	}
	if len(f.evidence.batches) != 0 {
		t.Error("evidence must only be persisted after a successful embedding batch")
	}
	if f.jobs.created[0].Status != domain.JobStatusFailed {
		t.Errorf("job status = %s, want failed", f.jobs.created[0].Status)
	}
}

func TestSubmitStreamZeroEvidence(t *testing.T) {
	f := newOrchestratorFixture()
	f.extract.drafts = nil

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "nothing about work in this one",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	last := collected[len(collected)-1]
	if last.Type != EventDone {
		t.Fatalf("expected done event, got %s (%q)", last.Type, last.Message)
	}
	if last.Summary == nil || last.Summary.EvidenceCount != 0 ||
		last.Summary.ClaimsCreated != 0 || last.Summary.ClaimsUpdated != 0 {
		t.Errorf("expected zero summary, got %+v", last.Summary)
	}

	job := f.jobs.created[0]
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("zero evidence should still complete, got %s", job.Status)
	}
	if len(f.evidence.batches) != 0 {
		t.Error("no evidence batch expected")
	}
}

func TestSubmitStreamSynthesisErrorIsWarning(t *testing.T) {
	f := newOrchestratorFixture()
	f.extract.drafts = []EvidenceDraft{
		{Type: domain.EvidenceTypeSkillListed, Text: "Go"},
		{Type: domain.EvidenceTypeSkillListed, Text: "Rust"},
	}
	f.synth.result = SynthesisResult{ClaimsCreated: 1}
	f.synth.err = errors.New("vector store unavailable")

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	last := collected[len(collected)-1]
	if last.Type != EventDone {
		t.Fatalf("synthesis error must not fail the job, got %s", last.Type)
	}

	job := f.jobs.created[0]
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if !strings.Contains(job.Warning, "claim synthesis incomplete") {
		t.Errorf("warning %q does not name the synthesis failure", job.Warning)
	}
	if job.EvidenceCount != 2 || job.ClaimsCreated != 1 {
		t.Errorf("partial counts lost: %+v", job)
	}
}

func TestSubmitStreamArchiveFailureIsWarning(t *testing.T) {
	f := newOrchestratorFixture()
	f.archive.err = errors.New("bucket unreachable")
	f.extract.drafts = []EvidenceDraft{{Type: domain.EvidenceTypeSkillListed, Text: "Go"}}

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	if collected[len(collected)-1].Type != EventDone {
		t.Fatal("archival failure must not fail the job")
	}
	if f.jobs.created[0].Warning != "raw text archival failed" {
		t.Errorf("unexpected warning: %q", f.jobs.created[0].Warning)
	}
}

func TestSubmitStreamArchiveKeyRecordFailureRollsBackUpload(t *testing.T) {
	f := newOrchestratorFixture()
	f.docs.archiveKeyErr = errors.New("row locked")
	f.extract.drafts = []EvidenceDraft{{Type: domain.EvidenceTypeSkillListed, Text: "Go"}}

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collected := drainEvents(t, events)
	if collected[len(collected)-1].Type != EventDone {
		t.Fatal("a lost archive key must not fail the job")
	}
	if len(f.archive.removed) != 1 {
		t.Errorf("orphaned upload not rolled back: removed=%v", f.archive.removed)
	}
}

func TestSubmitStreamArchiveRollbackSkipsPreexistingObject(t *testing.T) {
	f := newOrchestratorFixture()
	f.docs.archiveKeyErr = errors.New("row locked")
	f.archive.preexist = true
	f.extract.drafts = []EvidenceDraft{{Type: domain.EvidenceTypeSkillListed, Text: "Go"}}

	_, events, err := f.svc.SubmitStream(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "a long enough story about work",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	drainEvents(t, events)

	// The object was archived by an earlier submission of the same text;
	// this job must not delete what it did not upload
	if len(f.archive.removed) != 0 {
		t.Errorf("pre-existing archive object deleted: %v", f.archive.removed)
	}
}

func TestSubmitFingerprintNormalization(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.svc.Submit(context.Background(), &SubmitRequest{
		OwnerID: "owner-1",
		Text:    "line one\r\nline two\r\n",
		Kind:    domain.DocumentKindStory,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := f.docs.created[0]
	if doc.RawText != "line one\nline two" {
		t.Errorf("raw text not normalized: %q", doc.RawText)
	}
	if doc.Fingerprint != Fingerprint("line one\nline two") {
		t.Error("fingerprint must be computed over normalized text")
	}
	if doc.Status != domain.DocumentStatusPending {
		t.Errorf("new document should start pending, got %s", doc.Status)
	}
}
