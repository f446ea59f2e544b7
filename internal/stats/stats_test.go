// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"errors"
	"strings"
	"testing"
)

func TestPercentilesKnownVector(t *testing.T) {
	tracker := NewTracker(10)
	for _, latency := range []float64{10, 20, 30, 40, 50} {
		tracker.Record(latency, nil)
	}

	p50, p95 := tracker.Percentiles()
	if p50 == nil || p95 == nil {
		t.Fatal("expected percentiles for non-empty window")
	}
	if *p50 != 30 {
		t.Errorf("p50 = %v, want 30", *p50)
	}
	if *p95 != 48 {
		t.Errorf("p95 = %v, want 48", *p95)
	}
}

func TestPercentilesEmptyWindow(t *testing.T) {
	tracker := NewTracker(10)
	p50, p95 := tracker.Percentiles()
	if p50 != nil || p95 != nil {
		t.Error("expected nil percentiles for empty window")
	}
}

func TestWindowEviction(t *testing.T) {
	tracker := NewTracker(3)
	for _, latency := range []float64{1, 2, 3, 4} {
		tracker.Record(latency, nil)
	}

	snapshot := tracker.Snapshot()
	if len(snapshot.Latencies) != 3 {
		t.Fatalf("window length = %d, want 3", len(snapshot.Latencies))
	}
	if snapshot.Latencies[0] != 2 {
		t.Errorf("oldest sample = %v, want 2 after eviction", snapshot.Latencies[0])
	}
	if snapshot.TotalRequests != 4 {
		t.Errorf("total requests = %d, want 4", snapshot.TotalRequests)
	}
}

func TestRecordFailureCountsAndTruncates(t *testing.T) {
	tracker := NewTracker(5)
	tracker.Record(12.5, errors.New(strings.Repeat("x", 500)))
	tracker.Record(7.1, nil)

	snapshot := tracker.Snapshot()
	if snapshot.TotalFailures != 1 {
		t.Errorf("total failures = %d, want 1", snapshot.TotalFailures)
	}
	if len(snapshot.LastError) != 160 {
		t.Errorf("last error length = %d, want 160", len(snapshot.LastError))
	}
	if snapshot.LastLatencyMS == nil || *snapshot.LastLatencyMS != 7.1 {
		t.Errorf("last latency = %v, want 7.1", snapshot.LastLatencyMS)
	}
}

func TestRecordRoundsLatency(t *testing.T) {
	tracker := NewTracker(5)
	tracker.Record(10.567, nil)

	snapshot := tracker.Snapshot()
	if snapshot.Latencies[0] != 10.57 {
		t.Errorf("recorded latency = %v, want 10.57", snapshot.Latencies[0])
	}
}
