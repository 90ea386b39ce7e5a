package shared

import (
	"strings"
	"testing"
)

func TestNormalizeArtistKey(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"lowercases", "GRIZ", "griz"},
		{"trims whitespace", "  griz  ", "griz"},
		{"collapses inner whitespace", "The  String   Cheese Incident", "the string cheese incident"},
		{"preserves punctuation", "A$AP Rocky", "a$ap rocky"},
		{"empty input", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeArtistKey(tt.input)
			if got != tt.expect {
				t.Errorf("NormalizeArtistKey(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestFingerprintBytes(t *testing.T) {
	a := FingerprintBytes([]byte("flyer-bytes"))
	b := FingerprintBytes([]byte("flyer-bytes"))
	c := FingerprintBytes([]byte("different-bytes"))

	if a != b {
		t.Error("identical inputs should produce identical fingerprints")
	}
	if a == c {
		t.Error("different inputs should produce different fingerprints")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a != strings.ToLower(a) {
		t.Error("fingerprint should be lowercase hex")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms     int
		expect string
	}{
		{0, "0:00"},
		{59000, "0:59"},
		{60000, "1:00"},
		{225000, "3:45"},
		{3599000, "59:59"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.expect {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.expect)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()
	if a == b {
		t.Error("expected unique IDs")
	}
	if len(a) != 36 {
		t.Errorf("expected UUID string, got %q", a)
	}
}
