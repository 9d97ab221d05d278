package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// memStore is an in-memory ObjectStore for tests.
type memStore struct {
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) EnsureBucket(_ context.Context) error { return nil }

func (m *memStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func TestArchiveKey(t *testing.T) {
	a := NewArchive(newMemStore())

	got := a.Key("abcdef123456")
	if got != "raw/ab/abcdef123456.txt" {
		t.Errorf("Key() = %q", got)
	}
}

func TestArchiveSaveAndLoad(t *testing.T) {
	store := newMemStore()
	a := NewArchive(store)
	ctx := context.Background()

	key, uploaded, err := a.SaveText(ctx, "abcdef123456", "the raw document text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !uploaded {
		t.Error("first save should upload")
	}

	text, err := a.LoadText(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "the raw document text" {
		t.Errorf("loaded %q", text)
	}
}

func TestArchiveSaveSkipsExistingObject(t *testing.T) {
	store := newMemStore()
	a := NewArchive(store)
	ctx := context.Background()

	key1, _, err := a.SaveText(ctx, "abcdef123456", "same text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same fingerprint again (e.g. another owner submitted identical text):
	// same key, no second upload
	store.putErr = errors.New("should not be called")
	key2, uploaded, err := a.SaveText(ctx, "abcdef123456", "same text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key2 != key1 {
		t.Errorf("keys differ: %q vs %q", key1, key2)
	}
	if uploaded {
		t.Error("second save must report the object as pre-existing")
	}
}

func TestArchiveRemove(t *testing.T) {
	store := newMemStore()
	a := NewArchive(store)
	ctx := context.Background()

	key, _, err := a.SaveText(ctx, "abcdef123456", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Remove(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists, _ := store.Exists(ctx, key); exists {
		t.Error("object still present after Remove")
	}
}
