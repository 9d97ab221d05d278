package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Archive persists the raw text of submitted documents so the original
// submission survives even if the database row is ever lost. Keys are
// derived from the content fingerprint, so re-archiving the same text
// is a harmless overwrite.
type Archive struct {
	store ObjectStore
}

// NewArchive creates an Archive backed by the given object store.
func NewArchive(store ObjectStore) *Archive {
	return &Archive{store: store}
}

// Key returns the object key for a document fingerprint.
// The two-character prefix keeps bucket listings shallow.
func (a *Archive) Key(fingerprint string) string {
	if len(fingerprint) < 2 {
		return fmt.Sprintf("raw/%s.txt", fingerprint)
	}
	return fmt.Sprintf("raw/%s/%s.txt", fingerprint[:2], fingerprint)
}

// SaveText archives the raw document text and returns the object key.
// Keys are content-addressed, so when the object already exists (the same
// text archived for another owner) the upload is skipped. The uploaded flag
// reports whether this call created the object; a caller rolling back must
// only remove objects it uploaded itself.
func (a *Archive) SaveText(ctx context.Context, fingerprint, text string) (key string, uploaded bool, err error) {
	key = a.Key(fingerprint)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to check archive: %w", err)
	}
	if exists {
		return key, false, nil
	}

	reader := strings.NewReader(text)
	if err := a.store.Put(ctx, key, reader, int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return "", false, fmt.Errorf("failed to archive document: %w", err)
	}
	return key, true, nil
}

// Remove deletes an archived object by key.
func (a *Archive) Remove(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove archived document: %w", err)
	}
	return nil
}

// LoadText retrieves previously archived document text by key.
func (a *Archive) LoadText(ctx context.Context, key string) (string, error) {
	rc, err := a.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to fetch archived document: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read archived document: %w", err)
	}
	return string(data), nil
}
