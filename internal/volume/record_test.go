package volume

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

// buildRecord constructs a single USN_RECORD_V2 byte slice for the given
// fields, padding the record length to a multiple of 8 as the real API
// does.
func buildRecord(frn, parentFRN uint64, usn int64, reason uint32, name string) []byte {
	nameUnits := utf16.Encode([]rune(name))
	nameBytes := make([]byte, len(nameUnits)*2)
	for i, u := range nameUnits {
		binary.LittleEndian.PutUint16(nameBytes[i*2:], u)
	}

	recordLength := usnRecordV2HeaderSize + len(nameBytes)
	// Pad to 8-byte alignment like the real structure.
	if pad := recordLength % 8; pad != 0 {
		recordLength += 8 - pad
	}

	buf := make([]byte, recordLength)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(recordLength))
	binary.LittleEndian.PutUint16(buf[4:6], 2) // major version
	binary.LittleEndian.PutUint16(buf[6:8], 0) // minor version
	binary.LittleEndian.PutUint64(buf[8:16], frn)
	binary.LittleEndian.PutUint64(buf[16:24], parentFRN)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(usn))
	binary.LittleEndian.PutUint64(buf[32:40], 0) // timestamp
	binary.LittleEndian.PutUint32(buf[40:44], reason)
	binary.LittleEndian.PutUint32(buf[44:48], 0) // source info
	binary.LittleEndian.PutUint32(buf[48:52], 0) // security id
	binary.LittleEndian.PutUint32(buf[52:56], 0) // file attributes
	binary.LittleEndian.PutUint16(buf[56:58], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[58:60], usnRecordV2HeaderSize)
	copy(buf[usnRecordV2HeaderSize:], nameBytes)

	return buf
}

func TestDecodeRecord(t *testing.T) {
	buf := buildRecord(100, 5, 42, ReasonFileCreate, "chrome.exe")

	rec, length, ok, err := DecodeRecord(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(buf), int(length))
	require.Equal(t, uint64(100), rec.FRN)
	require.Equal(t, uint64(5), rec.ParentFRN)
	require.Equal(t, int64(42), rec.USN)
	require.Equal(t, ReasonFileCreate, rec.Reason)
	require.Equal(t, "chrome.exe", rec.Name)
}

func TestDecodeRecordZeroLengthTerminatesBatch(t *testing.T) {
	buf := make([]byte, 16)
	_, _, ok, err := DecodeRecord(buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeRecordRejectsOverlongName(t *testing.T) {
	buf := buildRecord(1, 5, 1, ReasonFileCreate, "a.txt")
	// Corrupt the name length to run past the record.
	binary.LittleEndian.PutUint16(buf[56:58], 0xFFFF)
	_, _, _, err := DecodeRecord(buf)
	require.Error(t, err)
}

func TestSplitEnumBufferMultipleRecords(t *testing.T) {
	r1 := buildRecord(1, 5, 10, ReasonFileCreate, "alpha.txt")
	r2 := buildRecord(2, 5, 11, ReasonFileCreate, "beta.txt")

	buf := make([]byte, 8+len(r1)+len(r2))
	binary.LittleEndian.PutUint64(buf[0:8], 999)
	copy(buf[8:], r1)
	copy(buf[8+len(r1):], r2)

	nextFRN, records, err := SplitEnumBuffer(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(999), nextFRN)
	require.Len(t, records, 2)
	require.Equal(t, "alpha.txt", records[0].Name)
	require.Equal(t, "beta.txt", records[1].Name)
}

func TestSplitJournalBufferShortBufferIsEmptyNotError(t *testing.T) {
	nextUSN, records, err := SplitJournalBuffer([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, nextUSN)
}
