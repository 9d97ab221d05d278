package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      buf,
		ServiceName: "test",
	})
}

func TestFromContextReturnsDefaultWhenUnset(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Fatal("FromContext returned nil for empty context")
	}
	if got := FromContext(nil); got == nil {
		t.Fatal("FromContext returned nil for nil context")
	}
}

func TestContextWithFieldsPropagates(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	ctx := log.WithContext(context.Background())
	ctx = ContextWithFields(ctx, Fields{
		FieldJobID:   "job-1",
		FieldOwnerID: "owner-1",
	})

	FromContext(ctx).Info("pipeline step")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line[FieldJobID] != "job-1" {
		t.Errorf("job_id = %v, want job-1", line[FieldJobID])
	}
	if line[FieldOwnerID] != "owner-1" {
		t.Errorf("owner_id = %v, want owner-1", line[FieldOwnerID])
	}
}

func TestContextFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	ctx := log.WithContext(context.Background())
	ctx = WithFields(ctx, Fields{FieldRequestID: "req-1"})
	ctx = WithFields(ctx, Fields{FieldDocumentID: "doc-1"})

	CtxInfo(ctx, "accumulated")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v, want req-1", line[FieldRequestID])
	}
	if line[FieldDocumentID] != "doc-1" {
		t.Errorf("document_id = %v, want doc-1", line[FieldDocumentID])
	}
}

func TestEntryMergesFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)
	ctx := log.WithContext(context.Background())

	With(Fields{FieldCount: 3}).
		With(Fields{FieldDurationMs: int64(12)}).
		WithField(FieldStatus, "ok").
		Info(ctx, "batch done")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line[FieldCount] != float64(3) {
		t.Errorf("count = %v, want 3", line[FieldCount])
	}
	if line[FieldDurationMs] != float64(12) {
		t.Errorf("duration_ms = %v, want 12", line[FieldDurationMs])
	}
	if line[FieldStatus] != "ok" {
		t.Errorf("status = %v, want ok", line[FieldStatus])
	}
}
