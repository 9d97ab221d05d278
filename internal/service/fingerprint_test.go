package service

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("I led the migration to Kubernetes.")
	b := Fingerprint("I led the migration to Kubernetes.")
	if a != b {
		t.Errorf("identical text produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestFingerprintNormalization(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "crlf vs lf",
			a:    "line one\r\nline two",
			b:    "line one\nline two",
			same: true,
		},
		{
			name: "surrounding whitespace",
			a:    "  some story text  \n",
			b:    "some story text",
			same: true,
		},
		{
			name: "different content",
			a:    "built a search engine",
			b:    "built a search engine.",
			same: false,
		},
		{
			name: "interior whitespace is significant",
			a:    "go  rust",
			b:    "go rust",
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.a) == Fingerprint(tt.b)
			if got != tt.same {
				t.Errorf("Fingerprint(%q) == Fingerprint(%q): got %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}
