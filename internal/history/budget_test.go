package history

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		contents []string
		want     int
	}{
		{"empty", nil, 0},
		{"exact multiple", []string{strings.Repeat("a", 400)}, 100},
		{"floor division", []string{"abcdefg"}, 1}, // 7 runes / 4
		{"multibyte counts runes not bytes", []string{"日本語テスト漢字です"}, 2},
		{"across turns", []string{strings.Repeat("x", 100), strings.Repeat("y", 100)}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(0, 0)
			for _, c := range tt.contents {
				h.Append(Turn{Role: RoleUser, Content: c})
			}
			if got := EstimateTokens(h); got != tt.want {
				t.Errorf("EstimateTokens = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateStrictlyIncreases(t *testing.T) {
	h := New(0, 0)
	prev := EstimateTokens(h)
	for i := 0; i < 5; i++ {
		h.Append(Turn{Role: RoleUser, Content: strings.Repeat("word ", 10)})
		cur := EstimateTokens(h)
		if cur <= prev {
			t.Fatalf("estimate did not increase: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

func TestRemainingFloorsAtZero(t *testing.T) {
	h := New(0, 0)
	h.Append(Turn{Role: RoleUser, Content: strings.Repeat("a", 4000)}) // ~1000 tokens

	if got := Remaining(h, 2000); got != 1000 {
		t.Errorf("Remaining = %d, want 1000", got)
	}
	if got := Remaining(h, 500); got != 0 {
		t.Errorf("overfull window: Remaining = %d, want 0", got)
	}
	if got := Remaining(h, 0); got != 0 {
		t.Errorf("zero window: Remaining = %d, want 0", got)
	}
}

func TestUsageRatio(t *testing.T) {
	h := New(0, 0)
	h.Append(Turn{Role: RoleUser, Content: strings.Repeat("a", 400)}) // 100 tokens

	if got := UsageRatio(h, 1000); got != 0.1 {
		t.Errorf("UsageRatio = %f, want 0.1", got)
	}
	if got := UsageRatio(h, 50); got != 1.0 {
		t.Errorf("overfull ratio should clamp to 1.0, got %f", got)
	}
	if got := UsageRatio(h, 0); got != 1.0 {
		t.Errorf("zero window ratio should read 1.0, got %f", got)
	}
}
