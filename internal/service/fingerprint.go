package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText canonicalizes submitted text before fingerprinting: CRLF
// line endings become LF and outer whitespace is trimmed, so the same
// content pasted from different editors fingerprints identically.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// Fingerprint computes the deterministic content digest used for duplicate
// detection. Identical text always yields the same digest.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}
