// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDumpLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.cbor")
	points := []ScanPoint{
		{AngleDeg: 20, DistanceMM: 500, Timestamp: time.UnixMilli(1000)},
		{AngleDeg: 30, DistanceMM: -1, Timestamp: time.UnixMilli(1200)},
	}

	if err := DumpFile(path, points); err != nil {
		t.Fatalf("DumpFile() error = %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(got) != len(points) {
		t.Fatalf("LoadFile() returned %d points, want %d", len(got), len(points))
	}
	for i := range points {
		if got[i].AngleDeg != points[i].AngleDeg || got[i].DistanceMM != points[i].DistanceMM {
			t.Errorf("point %d = %+v, want %+v", i, got[i], points[i])
		}
		if !got[i].Timestamp.Equal(points[i].Timestamp) {
			t.Errorf("point %d timestamp = %v, want %v", i, got[i].Timestamp, points[i].Timestamp)
		}
	}
}
