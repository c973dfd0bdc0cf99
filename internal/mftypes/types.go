package mftypes

import "strings"

// FRN is the 64-bit NTFS File Reference Number.
type FRN uint64

// RootFRN and ZeroFRN both terminate ascent when reconstructing a path; the
// NTFS root directory commonly carries FRN 5, and 0 never names a real
// record.
const (
	RootFRN FRN = 5
	ZeroFRN FRN = 0
)

// FileID is the 32-bit sequential identifier assigned to a path in the order
// it is written to the paths file. A file-id is stable only within one bulk
// build generation; a new bulk scan re-assigns ids from zero.
type FileID uint32

// Priority is a small signed secondary sort key derived from a file's base
// name and path.
type Priority int32

const (
	PriorityExe     Priority = 50
	PriorityLnk     Priority = 40
	PriorityScript  Priority = 30 // .bat / .cmd
	PriorityProgram Priority = 20 // under a standard program-files location
	PriorityDefault Priority = 0
)

var programLocations = []string{
	`\program files\`,
	`\program files (x86)\`,
	`\windows\`,
}

// ClassifyPriority derives the static priority of a path from its extension
// and its containing directories. path must already be lowercased.
func ClassifyPriority(lowerPath string) Priority {
	switch {
	case strings.HasSuffix(lowerPath, ".exe"):
		return PriorityExe
	case strings.HasSuffix(lowerPath, ".lnk"):
		return PriorityLnk
	case strings.HasSuffix(lowerPath, ".bat"), strings.HasSuffix(lowerPath, ".cmd"):
		return PriorityScript
	}
	for _, loc := range programLocations {
		if strings.Contains(lowerPath, loc) {
			return PriorityProgram
		}
	}
	return PriorityDefault
}

// SearchHit is one result of a search, exposed through the core API.
type SearchHit struct {
	Path     string
	Priority Priority
	Drive    byte
	FileID   FileID
}

// ParentInfo is the value half of the in-memory FRN map: a record's parent
// FRN and its own base name, as decoded from a USN record.
type ParentInfo struct {
	ParentFRN FRN
	Name      string
}

// DiskKind classifies the storage medium backing a volume, driving the
// scheduling policy in the scan coordinator.
type DiskKind int

const (
	DiskKindHDD DiskKind = iota
	DiskKindSSD
)

// CurrentFormatVersion is the compiled data-format version. Any mismatch
// against the on-disk marker file causes the coordinator to purge all
// per-drive artifacts before scanning.
const CurrentFormatVersion = 1

// DefaultIgnorePatterns are substrings that, when found in a lowercased
// path, exclude it from the index regardless of user configuration.
var DefaultIgnorePatterns = []string{
	`$recycle.bin`,
	`system volume information`,
	`\winsxs\`,
	`\temp\`,
}

// GramSize is the sliding-window width used to tokenize base names into
// overlapping grams.
const GramSize = 3

// ReplacementChar is substituted for invalid byte sequences when lossily
// decoding stored UTF-8 path bytes.
const ReplacementChar = '�'

// MaxPathAscentDepth bounds FRN-chain ascent. The FRN graph may contain
// cycles introduced by journal artifacts; a visited-set is too expensive at
// this scale, so a hard depth cap is the only safety valve.
const MaxPathAscentDepth = 50
