package constants

import "testing"

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{100, "A"},
		{95.5, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{79, "C"},
		{70, "C"},
		{65, "D"},
		{60, "D"},
		{59.99, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.percent); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobStateQueued, false},
		{JobStateRunning, false},
		{JobStateCompleted, true},
		{JobStateFailed, true},
		{JobStateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"pdf", PDF},
		{".PDF", PDF},
		{"jpg", IMAGE},
		{"png", IMAGE},
		{"txt", TEXT},
		{"md", TEXT},
		{"docx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MapExtToFormat(tt.ext); got != tt.want {
			t.Errorf("MapExtToFormat(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
