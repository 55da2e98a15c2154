package main

import (
	"testing"

	"github.com/banshee-data/covtrack/internal/telemetry"
)

func TestHandleLine(t *testing.T) {
	sampler, err := telemetry.NewSampler(3, 10)
	if err != nil {
		t.Fatal(err)
	}

	if err := handleLine(sampler, "1.0,2.0,3.0"); err != nil {
		t.Errorf("handleLine CSV returned error: %v", err)
	}
	if err := handleLine(sampler, `{"sensor_id":"imu-1","values":[4.0,5.0,6.0]}`); err != nil {
		t.Errorf("handleLine JSON returned error: %v", err)
	}

	stats := sampler.Stats()
	if stats.Occupancy != 2 {
		t.Errorf("Occupancy = %d after two lines, want 2", stats.Occupancy)
	}
	if stats.Mean[0] != 2.5 {
		t.Errorf("Mean[0] = %v, want 2.5", stats.Mean[0])
	}
}

func TestHandleLine_SkipsBlankAndComments(t *testing.T) {
	sampler, err := telemetry.NewSampler(2, 10)
	if err != nil {
		t.Fatal(err)
	}

	for _, line := range []string{"", "   ", "# calibration note"} {
		if err := handleLine(sampler, line); err != nil {
			t.Errorf("handleLine(%q) returned error: %v", line, err)
		}
	}
	if got := sampler.Stats().Occupancy; got != 0 {
		t.Errorf("Occupancy = %d after skippable lines, want 0", got)
	}
}

func TestHandleLine_Errors(t *testing.T) {
	sampler, err := telemetry.NewSampler(2, 10)
	if err != nil {
		t.Fatal(err)
	}

	if err := handleLine(sampler, "1.0,oops"); err == nil {
		t.Error("handleLine with malformed CSV should return an error")
	}
	if err := handleLine(sampler, "1.0,2.0,3.0"); err == nil {
		t.Error("handleLine with wrong sample width should return an error")
	}
	if got := sampler.Stats().Occupancy; got != 0 {
		t.Errorf("Occupancy = %d after rejected lines, want 0", got)
	}
}
