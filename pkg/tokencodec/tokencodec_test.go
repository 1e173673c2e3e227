package tokencodec

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	token, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !strings.HasPrefix(token, Prefix) {
		t.Errorf("Generate() token %q missing prefix %q", token, Prefix)
	}

	if len(token) <= len(Prefix) {
		t.Error("Generate() token has no random body")
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("Generate() produced a duplicate token: %s", token)
		}
		seen[token] = true
	}
}

func TestHash_Deterministic(t *testing.T) {
	token := "hdx_ingest_abc123"

	h1 := Hash(token)
	h2 := Hash(token)

	if h1 != h2 {
		t.Errorf("Hash() not deterministic: %s != %s", h1, h2)
	}

	if len(h1) != 64 {
		t.Errorf("Hash() length = %d, want 64", len(h1))
	}

	for _, c := range h1 {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("Hash() contains non-lowercase-hex character: %c", c)
		}
	}
}

func TestHash_DifferentInputsDifferentHashes(t *testing.T) {
	h1 := Hash("hdx_ingest_aaa")
	h2 := Hash("hdx_ingest_bbb")

	if h1 == h2 {
		t.Error("Hash() produced the same digest for different tokens")
	}
}

func TestDisplayPrefix(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "long token truncated to 12 chars",
			token: "hdx_ingest_abcdefghijklmnop",
			want:  "hdx_ingest_a",
		},
		{
			name:  "short token returned unchanged",
			token: "hdx_ing",
			want:  "hdx_ing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayPrefix(tt.token)
			if got != tt.want {
				t.Errorf("DisplayPrefix(%q) = %q, want %q", tt.token, got, tt.want)
			}
			if len(got) > 12 {
				t.Errorf("DisplayPrefix(%q) returned %d chars, want <= 12", tt.token, len(got))
			}
		})
	}
}

func TestGeneratedTokenRoundTripsThroughHashAndPrefix(t *testing.T) {
	token, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	prefix := DisplayPrefix(token)
	if !strings.HasPrefix(token, prefix) {
		t.Error("DisplayPrefix() is not a prefix of the generated token")
	}

	hash := Hash(token)
	if hash != Hash(token) {
		t.Error("Hash() is not stable across calls on the same token")
	}
}
