//go:build !windows

package scancoord

import "github.com/halsted/mftsearch/internal/mftypes"

// OtherDiskKindDetector always reports HDD: the storage-property IOCTL
// this classification is built on only exists on Windows, and an
// unrecognized disk kind falls back to HDD per the documented policy.
type OtherDiskKindDetector struct{}

func (OtherDiskKindDetector) DetectDiskKind(byte) mftypes.DiskKind {
	return mftypes.DiskKindHDD
}

// platformDetector aliases the build-tagged detector RunAll's default
// Coordinator uses.
type platformDetector = OtherDiskKindDetector
