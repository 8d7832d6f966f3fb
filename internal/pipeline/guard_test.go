package pipeline

import (
	"testing"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

func TestCheckThreshold(t *testing.T) {
	tests := []struct {
		removed   int
		threshold int
		want      bool
	}{
		{10, 40, true},
		{40, 40, true},
		{41, 40, false},
		{0, 0, true},
		{1, 0, false},
		{0, ThresholdDisabled, true},
		{1000000, ThresholdDisabled, true},
		{0, -2, false},
	}

	for _, tt := range tests {
		got := CheckThreshold(domain.DiffResult{Removed: tt.removed}, tt.threshold)
		if got.Allowed != tt.want {
			t.Errorf("CheckThreshold(removed=%d, threshold=%d) = %v, want %v",
				tt.removed, tt.threshold, got.Allowed, tt.want)
		}
		if got.Removed != tt.removed || got.Threshold != tt.threshold {
			t.Errorf("decision = %+v, should echo inputs", got)
		}
	}
}

func TestCheckThreshold_Law(t *testing.T) {
	for threshold := 0; threshold <= 20; threshold++ {
		for removed := 0; removed <= 25; removed++ {
			got := CheckThreshold(domain.DiffResult{Removed: removed}, threshold).Allowed
			if got != (removed <= threshold) {
				t.Fatalf("threshold=%d removed=%d: allowed=%v", threshold, removed, got)
			}
		}
	}
}
