package domain

import "testing"

func TestNextStage(t *testing.T) {
	tests := []struct {
		status    JobStatus
		wantStage Stage
		wantNext  JobStatus
		wantOK    bool
	}{
		{JobStatusAssigned, StageUpload, JobStatusUploading, true},
		{JobStatusUploading, StageSetCaption, JobStatusCaptionSet, true},
		{JobStatusCaptionSet, StageSetAudience, JobStatusAudienceSet, true},
		{JobStatusAudienceSet, StageSubmit, JobStatusSubmitted, true},
		{JobStatusSubmitted, StageConfirm, JobStatusConfirmed, true},
		{JobStatusPending, "", "", false},
		{JobStatusConfirmed, "", "", false},
		{JobStatusFailed, "", "", false},
	}

	for _, tt := range tests {
		stage, next, ok := NextStage(tt.status)
		if ok != tt.wantOK {
			t.Errorf("NextStage(%s): ok = %v, want %v", tt.status, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if stage != tt.wantStage || next != tt.wantNext {
			t.Errorf("NextStage(%s) = (%s, %s), want (%s, %s)",
				tt.status, stage, next, tt.wantStage, tt.wantNext)
		}
	}
}

func TestStageChainReachesConfirmed(t *testing.T) {
	status := JobStatusAssigned
	steps := 0
	for {
		_, next, ok := NextStage(status)
		if !ok {
			break
		}
		status = next
		steps++
		if steps > 10 {
			t.Fatal("stage chain does not terminate")
		}
	}

	if status != JobStatusConfirmed {
		t.Errorf("chain ended at %s, want %s", status, JobStatusConfirmed)
	}
	if steps != 5 {
		t.Errorf("chain took %d steps, want 5", steps)
	}
}

func TestTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusConfirmed, JobStatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}

	working := []JobStatus{
		JobStatusPending, JobStatusAssigned, JobStatusUploading,
		JobStatusCaptionSet, JobStatusAudienceSet, JobStatusSubmitted,
	}
	for _, s := range working {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}
