package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/logger"
)

// ValidationError is a malformed or out-of-bounds submission, surfaced
// immediately with the exact bound that was violated. No rows are created.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Consumer-side slices of the stores and services the orchestrator drives.
type documentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	UpdateArchiveKey(ctx context.Context, id string, key string) error
}

type jobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Save(ctx context.Context, job *domain.Job) error
}

type evidenceStore interface {
	CreateBatch(ctx context.Context, items []domain.Evidence) error
}

type evidenceExtractor interface {
	Extract(ctx context.Context, text string, kind domain.DocumentKind) ([]EvidenceDraft, error)
}

type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type claimSynthesizer interface {
	Synthesize(ctx context.Context, ownerID string, items []domain.Evidence, onProgress ProgressFunc, onDecision DecisionFunc) (SynthesisResult, error)
}

type textArchiver interface {
	SaveText(ctx context.Context, fingerprint, text string) (key string, uploaded bool, err error)
	Remove(ctx context.Context, key string) error
}

type viewInvalidator interface {
	InvalidatePrefix(prefix string)
}

// OrchestratorConfig holds the submission bounds and streaming cadence.
type OrchestratorConfig struct {
	StoryMinChars  int
	StoryMaxChars  int
	ResumeMinChars int
	ResumeMaxChars int
	TickerInterval time.Duration
}

// SubmitRequest is one text submission.
type SubmitRequest struct {
	OwnerID string
	Text    string
	Kind    domain.DocumentKind
}

// SubmitResult carries the identifiers returned to the caller while
// processing continues asynchronously.
type SubmitResult struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
}

// OrchestratorService is the top-level pipeline state machine: it validates
// a submission, creates the document and job rows, then drives extraction,
// embedding, and synthesis in sequence, mirroring every state change into
// the durable job row and, when streaming, into a live event stream.
type OrchestratorService struct {
	docs        documentStore
	jobs        jobStore
	evidence    evidenceStore
	extractor   evidenceExtractor
	embedder    batchEmbedder
	synthesizer claimSynthesizer
	broker      *JobBroker
	archive     textArchiver    // optional, nil disables archival
	views       viewInvalidator // optional, nil disables cache invalidation
	cfg         OrchestratorConfig
}

// NewOrchestratorService wires the pipeline together. archive and views may
// be nil.
func NewOrchestratorService(
	docs documentStore,
	jobs jobStore,
	evidence evidenceStore,
	extractor evidenceExtractor,
	embedder batchEmbedder,
	synthesizer claimSynthesizer,
	broker *JobBroker,
	archive textArchiver,
	views viewInvalidator,
	cfg OrchestratorConfig,
) *OrchestratorService {
	return &OrchestratorService{
		docs:        docs,
		jobs:        jobs,
		evidence:    evidence,
		extractor:   extractor,
		embedder:    embedder,
		synthesizer: synthesizer,
		broker:      broker,
		archive:     archive,
		views:       views,
		cfg:         cfg,
	}
}

// Submit validates a submission, creates its rows, and starts processing in
// the background, returning identifiers immediately. A duplicate submission
// surfaces as *repository.ErrDuplicateDocument, a bounds violation as
// *ValidationError.
func (o *OrchestratorService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	doc, job, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	go o.run(context.WithoutCancel(ctx), doc, job, nil)

	return &SubmitResult{DocumentID: doc.ID, JobID: job.ID}, nil
}

// SubmitStream is the streaming variant: same pipeline, but phase, highlight,
// and terminal events are multiplexed over the returned channel. Pure
// validation failures return an error before any row is created.
func (o *OrchestratorService) SubmitStream(ctx context.Context, req *SubmitRequest) (*SubmitResult, <-chan Event, error) {
	if err := o.validate(req); err != nil {
		return nil, nil, err
	}

	doc, job, err := o.begin(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	stream := newEventStream(64)
	go o.run(ctx, doc, job, stream)

	return &SubmitResult{DocumentID: doc.ID, JobID: job.ID}, stream.Events(), nil
}

// validate enforces the submission contract, naming the exact bound violated.
func (o *OrchestratorService) validate(req *SubmitRequest) error {
	if req.OwnerID == "" {
		return &ValidationError{Message: "owner id is required"}
	}

	var min, max int
	switch req.Kind {
	case domain.DocumentKindStory:
		min, max = o.cfg.StoryMinChars, o.cfg.StoryMaxChars
	case domain.DocumentKindResume:
		min, max = o.cfg.ResumeMinChars, o.cfg.ResumeMaxChars
	default:
		return &ValidationError{Message: fmt.Sprintf("unknown document kind %q, expected \"resume\" or \"story\"", req.Kind)}
	}

	length := len([]rune(NormalizeText(req.Text)))
	if length < min {
		return &ValidationError{Message: fmt.Sprintf("%s text must be at least %d characters, got %d", req.Kind, min, length)}
	}
	if max > 0 && length > max {
		return &ValidationError{Message: fmt.Sprintf("%s text must be at most %d characters, got %d", req.Kind, max, length)}
	}

	return nil
}

// begin inserts the document and job rows. The document insert doubles as
// the duplicate check: the (owner_id, fingerprint) unique constraint
// serializes concurrent identical submissions, and the constraint violation
// is translated into the duplicate error by the repository.
func (o *OrchestratorService) begin(ctx context.Context, req *SubmitRequest) (*domain.Document, *domain.Job, error) {
	doc := &domain.Document{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		Kind:        req.Kind,
		RawText:     NormalizeText(req.Text),
		Fingerprint: Fingerprint(req.Text),
		Status:      domain.DocumentStatusPending,
	}
	if err := o.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}

	job := &domain.Job{
		ID:         uuid.New().String(),
		OwnerID:    req.OwnerID,
		DocumentID: doc.ID,
		Kind:       req.Kind,
		Status:     domain.JobStatusPending,
		Highlights: domain.HighlightList{},
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	return doc, job, nil
}

// run drives one job through the pipeline. ctx is the caller's context and
// scopes only the ticker and stream writer; all external calls and row
// writes use a detached context so a client disconnect never aborts
// in-flight work.
func (o *OrchestratorService) run(ctx context.Context, doc *domain.Document, job *domain.Job, stream *eventStream) {
	detached := logger.ContextWithFields(context.WithoutCancel(ctx), logger.Fields{
		logger.FieldJobID:      job.ID,
		logger.FieldDocumentID: doc.ID,
		logger.FieldOwnerID:    doc.OwnerID,
	})
	log := logger.FromContext(detached)

	now := time.Now()
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	o.setPhase(detached, job, domain.JobPhaseValidating, stream)

	if err := o.docs.UpdateStatus(detached, doc.ID, domain.DocumentStatusProcessing); err != nil {
		log.WithError(err).Error("failed to mark document processing")
	}

	// Best-effort raw text archival; failure downgrades to a warning
	if o.archive != nil {
		if key, uploaded, err := o.archive.SaveText(detached, doc.Fingerprint, doc.RawText); err != nil {
			log.WithError(err).Warn("raw text archival failed")
			job.Warning = "raw text archival failed"
		} else if err := o.docs.UpdateArchiveKey(detached, doc.ID, key); err != nil {
			log.WithError(err).Warn("failed to record archive key")
			// Rollback: delete the object ONLY if this job uploaded it;
			// without the key on the row it is unreachable anyway
			if uploaded {
				if delErr := o.archive.Remove(detached, key); delErr != nil {
					log.WithError(delErr).Error("failed to rollback archive upload")
				}
			}
		}
	}

	// Extraction
	o.setPhase(detached, job, domain.JobPhaseExtracting, stream)
	stop := o.startTicker(ctx, domain.JobPhaseExtracting, stream)
	drafts, err := o.extractor.Extract(detached, doc.RawText, doc.Kind)
	stop()
	if err != nil {
		o.fail(ctx, detached, doc, job, stream, err)
		return
	}

	// An empty extraction is not an error: complete with a zero summary
	if len(drafts) == 0 {
		log.Info("extraction yielded no usable evidence")
		o.complete(ctx, detached, doc, job, stream, 0, SynthesisResult{})
		return
	}

	o.appendHighlight(detached, job, stream, domain.HighlightFound,
		fmt.Sprintf("Found %d evidence statements", len(drafts)))

	// Embeddings: a single order-preserving batch call
	o.setPhase(detached, job, domain.JobPhaseEmbeddings, stream)
	stop = o.startTicker(ctx, domain.JobPhaseEmbeddings, stream)
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	vectors, err := o.embedder.EmbedBatch(detached, texts)
	stop()
	if err != nil {
		o.fail(ctx, detached, doc, job, stream, fmt.Errorf("embedding failed: %w", err))
		return
	}

	// Evidence rows are persisted only after embedding, in one batch, so a
	// failed embedding phase leaves no partial evidence behind
	items := make([]domain.Evidence, len(drafts))
	for i, d := range drafts {
		items[i] = domain.Evidence{
			ID:         uuid.New().String(),
			OwnerID:    doc.OwnerID,
			DocumentID: doc.ID,
			Type:       d.Type,
			Text:       d.Text,
			Context:    d.Context,
			Embedding:  vectors[i],
		}
	}
	if err := o.evidence.CreateBatch(detached, items); err != nil {
		o.fail(ctx, detached, doc, job, stream, fmt.Errorf("failed to store evidence: %w", err))
		return
	}

	// Synthesis: best-effort relative to evidence capture
	o.setPhase(detached, job, domain.JobPhaseSynthesis, stream)
	stop = o.startTicker(ctx, domain.JobPhaseSynthesis, stream)
	result, synthErr := o.synthesizer.Synthesize(detached, doc.OwnerID, items,
		func(current, total int) {
			job.Progress = fmt.Sprintf("%d/%d", current, total)
			o.persist(detached, job)
		},
		func(kind domain.HighlightKind, label string) {
			message := "Created claim: " + label
			if kind == domain.HighlightUpdated {
				message = "Strengthened claim: " + label
			}
			o.appendHighlight(detached, job, stream, kind, message)
		},
	)
	stop()
	if synthErr != nil {
		log.WithError(synthErr).Warn("claim synthesis incomplete")
		job.Warning = fmt.Sprintf("claim synthesis incomplete: %v", synthErr)
	}

	o.complete(ctx, detached, doc, job, stream, len(items), result)
}

// setPhase records a phase transition in the job row and emits a phase event.
func (o *OrchestratorService) setPhase(ctx context.Context, job *domain.Job, phase domain.JobPhase, stream *eventStream) {
	job.Phase = phase
	o.persist(ctx, job)
	stream.send(Event{Type: EventPhase, Phase: phase})
}

// appendHighlight appends to the job's durable highlight list and emits a
// highlight event.
func (o *OrchestratorService) appendHighlight(ctx context.Context, job *domain.Job, stream *eventStream, kind domain.HighlightKind, message string) {
	h := domain.Highlight{Kind: kind, Message: message, At: time.Now()}
	job.Highlights = append(job.Highlights, h)
	o.persist(ctx, job)
	stream.send(Event{Type: EventHighlight, Highlight: &h})
}

// startTicker decorates a phase with synthetic stream-only highlights. They
// are deliberately not persisted: the job row's highlight list holds real
// decisions, the ticker only keeps an attached stream moving.
func (o *OrchestratorService) startTicker(ctx context.Context, phase domain.JobPhase, stream *eventStream) func() {
	if stream == nil {
		return func() {}
	}
	return startPhaseTicker(ctx, phase, o.cfg.TickerInterval, func(h domain.Highlight) {
		stream.send(Event{Type: EventHighlight, Highlight: &h})
	})
}

// persist writes the job row and publishes the new snapshot to watchers.
func (o *OrchestratorService) persist(ctx context.Context, job *domain.Job) {
	if err := o.jobs.Save(ctx, job); err != nil {
		logger.FromContext(ctx).WithError(err).Error("failed to save job")
	}
	o.broker.Publish(job)
}

// fail marks the job and document failed and emits the terminal error event.
func (o *OrchestratorService) fail(ctx, detached context.Context, doc *domain.Document, job *domain.Job, stream *eventStream, err error) {
	logger.FromContext(detached).WithError(err).Error("job failed")

	now := time.Now()
	job.Status = domain.JobStatusFailed
	job.Error = err.Error()
	job.CompletedAt = &now
	o.persist(detached, job)

	if uerr := o.docs.UpdateStatus(detached, doc.ID, domain.DocumentStatusFailed); uerr != nil {
		logger.FromContext(detached).WithError(uerr).Error("failed to mark document failed")
	}

	stream.sendTerminal(ctx, Event{Type: EventError, Message: err.Error()})
}

// complete marks the job and document completed, records the summary, and
// emits the terminal done event.
func (o *OrchestratorService) complete(ctx, detached context.Context, doc *domain.Document, job *domain.Job, stream *eventStream, evidenceCount int, result SynthesisResult) {
	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.Phase = ""
	job.Progress = ""
	job.EvidenceCount = evidenceCount
	job.ClaimsCreated = result.ClaimsCreated
	job.ClaimsUpdated = result.ClaimsUpdated
	job.CompletedAt = &now
	o.persist(detached, job)

	if err := o.docs.UpdateStatus(detached, doc.ID, domain.DocumentStatusCompleted); err != nil {
		logger.FromContext(detached).WithError(err).Error("failed to mark document completed")
	}

	if o.views != nil {
		o.views.InvalidatePrefix(doc.OwnerID + ":")
	}

	stream.sendTerminal(ctx, Event{Type: EventDone, Summary: &JobSummary{
		EvidenceCount: evidenceCount,
		ClaimsCreated: result.ClaimsCreated,
		ClaimsUpdated: result.ClaimsUpdated,
	}})
}
