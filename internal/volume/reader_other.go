//go:build !windows

package volume

import (
	"fmt"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// OtherReader backs every Reader method except Close (a no-op) with
// ErrKindUnsupportedPlatform.
// The core relies on NTFS volume IOCTLs that only exist on Windows; off
// Windows the module still builds and its platform-independent logic
// (tokenizer, FST, roaring bitmaps, path reconstruction, the query engine)
// remains fully testable.
type OtherReader struct {
	letter byte
}

// CheckAdminRights always reports false off Windows.
func CheckAdminRights() bool { return false }

// Open returns an OtherReader; every operation on it other than Close fails
// with ErrKindUnsupportedPlatform.
func Open(letter byte) (*OtherReader, error) {
	return &OtherReader{letter: letter}, nil
}

func (r *OtherReader) unsupported(op string) error {
	return mftypes.NewError(mftypes.ErrKindUnsupportedPlatform, op, fmt.Errorf("NTFS volume IOCTLs are only available on windows"))
}

func (r *OtherReader) Close() error { return nil }

func (r *OtherReader) QueryJournal() (JournalData, error) {
	return JournalData{}, r.unsupported("volume.QueryJournal")
}

func (r *OtherReader) EnumerateRecords(startFRN uint64, highUSN int64) (uint64, []DecodedRecord, bool, error) {
	return 0, nil, false, r.unsupported("volume.EnumerateRecords")
}

func (r *OtherReader) ReadJournal(startUSN int64, reasonMask uint32, waitBytes uint64) (int64, []DecodedRecord, error) {
	return 0, nil, r.unsupported("volume.ReadJournal")
}
