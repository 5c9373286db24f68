package security

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "Plain text", input: "Who wins the final?", max: 200, expected: "Who wins the final?"},
		{name: "Strips markup", input: "<b>Team A</b><script>alert(1)</script>", max: 200, expected: "Team A"},
		{name: "Trims whitespace", input: "  Team B \n", max: 200, expected: "Team B"},
		{name: "Drops null bytes", input: "Te\x00am", max: 200, expected: "Team"},
		{name: "Caps by rune", input: "تیم آبی", max: 3, expected: "تیم"},
		{name: "No cap", input: "abc", max: 0, expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input, tt.max); got != tt.expected {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
