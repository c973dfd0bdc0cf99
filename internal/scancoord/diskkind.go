// Package scancoord implements the multi-drive scan coordinator (C5):
// enumerating eligible volumes, classifying each as SSD or HDD, purging
// stale artifacts on a format-version mismatch, and running the bulk-scan
// pipeline (C1->C2->C3->C4) per volume under the SSD-parallel/HDD-serial
// scheduling policy.
package scancoord

import "github.com/halsted/mftsearch/internal/mftypes"

// DiskKindDetector classifies the storage medium behind a drive letter.
// Implementations are platform-specific; see diskkind_windows.go and
// diskkind_other.go.
type DiskKindDetector interface {
	DetectDiskKind(letter byte) mftypes.DiskKind
}
