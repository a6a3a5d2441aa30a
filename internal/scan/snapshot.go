// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// cborPoint is the wire shape persisted to disk: ScanPoint's Timestamp
// flattened to a Unix millisecond count so a snapshot survives a
// roundtrip through a process with a different monotonic clock origin.
type cborPoint struct {
	AngleDeg    int   `cbor:"angle_deg"`
	DistanceMM  int   `cbor:"distance_mm"`
	TimestampMs int64 `cbor:"timestamp_ms"`
}

// DumpFile CBOR-encodes points and writes them to path, for the
// `legbrain scan dump` diagnostic command.
func DumpFile(path string, points []ScanPoint) error {
	wire := make([]cborPoint, len(points))
	for i, p := range points {
		wire[i] = cborPoint{
			AngleDeg:    p.AngleDeg,
			DistanceMM:  p.DistanceMM,
			TimestampMs: p.Timestamp.UnixMilli(),
		}
	}

	data, err := cbor.Marshal(wire)
	if err != nil {
		return fmt.Errorf("scan: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scan: write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads and decodes a snapshot previously written by
// DumpFile.
func LoadFile(path string) ([]ScanPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scan: read %s: %w", path, err)
	}

	var wire []cborPoint
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("scan: unmarshal snapshot: %w", err)
	}

	out := make([]ScanPoint, len(wire))
	for i, w := range wire {
		out[i] = ScanPoint{
			AngleDeg:   w.AngleDeg,
			DistanceMM: w.DistanceMM,
			Timestamp:  time.UnixMilli(w.TimestampMs),
		}
	}
	return out, nil
}
