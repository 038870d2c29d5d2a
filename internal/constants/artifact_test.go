package constants

import "testing"

func TestArtifactKind_Valid(t *testing.T) {
	tests := []struct {
		kind ArtifactKind
		want bool
	}{
		{ArtifactPhases, true},
		{ArtifactSpikes, true},
		{"", false},
		{"voltages", false},
		{"PHASES", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("ArtifactKind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestArtifactKind_FileName(t *testing.T) {
	tests := []struct {
		kind ArtifactKind
		n    int
		want string
	}{
		{ArtifactPhases, 0, "phases0.arrow"},
		{ArtifactSpikes, 0, "spikes0.arrow"},
		{ArtifactPhases, 12, "phases12.arrow"},
	}

	for _, tt := range tests {
		if got := tt.kind.FileName(tt.n); got != tt.want {
			t.Errorf("%s.FileName(%d) = %q, want %q", tt.kind, tt.n, got, tt.want)
		}
	}
}

func TestSentinelAboveThreshold(t *testing.T) {
	if SentinelPhase <= Threshold {
		t.Fatalf("SentinelPhase %v must be above Threshold %v", SentinelPhase, Threshold)
	}
}
