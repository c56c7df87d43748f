package token

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !Validate(tok) {
			t.Fatalf("generated token fails validation: %q", tok)
		}
		if tok != strings.ToUpper(tok) {
			t.Errorf("expected uppercase token, got %q", tok)
		}
		seen[tok] = true
	}
	if len(seen) < 100 {
		t.Errorf("expected 100 distinct tokens, got %d", len(seen))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", "LF-A3B9C2-D4E5F6", true},
		{"valid all digits", "LF-123456-654321", true},
		{"wrong group length", "LF-A3B9-C2D4E5", false},
		{"wrong prefix", "XY-A3B9C2-D4E5F6", false},
		{"wrong arity", "LF-A3B9C2-D4E5F6-EXTRA", false},
		{"missing group", "LF-A3B9C2", false},
		{"empty", "", false},
		{"non alphanumeric group", "LF-A3B9C!-D4E5F6", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.token); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
