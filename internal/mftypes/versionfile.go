package mftypes

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadVersionFile parses an ASCII decimal unsigned integer from path. A
// missing file reads as version 0, matching "no compaction has ever run
// yet" rather than an error.
func ReadVersionFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, NewError(ErrKindIndexCorrupt, "mftypes.ReadVersionFile", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, NewError(ErrKindIndexCorrupt, "mftypes.ReadVersionFile", err)
	}
	return v, nil
}

// WriteVersionFile atomically writes v as ASCII decimal to path: it writes
// to a sibling .tmp file and renames over the target, so a reader never
// observes a partially written version.
func WriteVersionFile(path string, v uint64) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d", v)), 0o644); err != nil {
		return NewError(ErrKindMergeFailure, "mftypes.WriteVersionFile", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return NewError(ErrKindMergeFailure, "mftypes.WriteVersionFile", err)
	}
	return nil
}
