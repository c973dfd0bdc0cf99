// Package volume implements the streaming MFT/USN bulk scanner (C1): opening
// a raw NTFS volume, querying or creating its USN journal, enumerating MFT
// records, and decoding USN V2 record headers and UTF-16 names. The IOCTL
// plumbing lives in platform-tagged files; this file holds the pure,
// platform-independent record decoding so it can be unit tested on any
// GOOS, the same split go-winio uses between its windows-tagged syscall
// wrappers and its plain Go structure code.
package volume

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// IOCTL codes for the NTFS USN journal and MFT enumeration, per
// winioctl.h.
const (
	FsctlQueryUsnJournal uint32 = 0x000900f4
	FsctlCreateUsnJournal uint32 = 0x000900e7
	FsctlEnumUsnData      uint32 = 0x000900b3
	FsctlReadUsnJournal    uint32 = 0x000900bb
)

// File attribute bits relevant to MFT enumeration.
const (
	FileAttributeDirectory uint32 = 0x00000010
	FileAttributeSystem    uint32 = 0x00000004
)

// USN reason bits the incremental updater switches on.
const (
	ReasonFileCreate   uint32 = 0x00000100
	ReasonFileDelete   uint32 = 0x00000200
	ReasonRenameOldName uint32 = 0x00001000
	ReasonRenameNewName uint32 = 0x00002000
	ReasonAll          uint32 = 0xFFFFFFFF
)

// usnRecordV2HeaderSize is the fixed-size prefix of a USN_RECORD_V2 before
// the variable-length UTF-16LE name: record_length(4) + major(2) + minor(2)
// + frn(8) + parent_frn(8) + usn(8) + timestamp(8) + reason(4) +
// source_info(4) + security_id(4) + file_attributes(4) + name_length(2) +
// name_offset(2) = 60 bytes.
const usnRecordV2HeaderSize = 60

// JournalData is the decoded result of FSCTL_QUERY_USN_JOURNAL / the create
// variant.
type JournalData struct {
	JournalID       uint64
	FirstUSN        int64
	NextUSN         int64
	LowestValidUSN  int64
	MaxUSN          int64
	MaximumSize     uint64
	AllocationDelta uint64
}

// DecodedRecord is one decoded USN V2 record: FRN, parent FRN, USN, reason
// mask, and name.
type DecodedRecord struct {
	FRN       uint64
	ParentFRN uint64
	USN       int64
	Reason    uint32
	Name      string
}

// DecodeRecord parses a single USN_RECORD_V2 starting at the front of buf.
// It returns the record's declared length (so callers can advance to the
// next record) and the decoded fields. A record_length of zero signals end
// of the current IOCTL buffer and is reported via ok=false with a nil
// error, matching the "zero length terminates the parse" edge case.
func DecodeRecord(buf []byte) (rec DecodedRecord, recordLength uint32, ok bool, err error) {
	if len(buf) < 4 {
		return DecodedRecord{}, 0, false, nil
	}
	recordLength = binary.LittleEndian.Uint32(buf[0:4])
	if recordLength == 0 {
		return DecodedRecord{}, 0, false, nil
	}
	if int(recordLength) > len(buf) || recordLength < usnRecordV2HeaderSize {
		return DecodedRecord{}, recordLength, false, fmt.Errorf("decode usn record: short record (length %d, buffer %d)", recordLength, len(buf))
	}

	frn := binary.LittleEndian.Uint64(buf[8:16])
	parentFRN := binary.LittleEndian.Uint64(buf[16:24])
	usn := int64(binary.LittleEndian.Uint64(buf[24:32]))
	reason := binary.LittleEndian.Uint32(buf[40:44])
	nameLength := binary.LittleEndian.Uint16(buf[56:58])
	nameOffset := binary.LittleEndian.Uint16(buf[58:60])

	nameStart := int(nameOffset)
	nameEnd := nameStart + int(nameLength)
	if nameEnd > int(recordLength) || nameEnd > len(buf) {
		return DecodedRecord{}, recordLength, false, fmt.Errorf("decode usn record: name extends past record (offset %d, length %d)", nameOffset, nameLength)
	}

	name := decodeUTF16LE(buf[nameStart:nameEnd])

	return DecodedRecord{
		FRN:       frn,
		ParentFRN: parentFRN,
		USN:       usn,
		Reason:    reason,
		Name:      name,
	}, recordLength, true, nil
}

// decodeUTF16LE decodes raw little-endian UTF-16 bytes to a Go string,
// replacing unpaired surrogates with the Unicode replacement character
// rather than failing.
func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// SplitEnumBuffer parses the result of an FSCTL_ENUM_USN_DATA call: an
// 8-byte next-FRN cursor followed by a packed sequence of USN V2 records.
// It returns the cursor and the decoded records; a short or truncated
// buffer simply ends the batch rather than failing the whole pass, except
// for a corrupt (overlong) record, which is a hard error.
func SplitEnumBuffer(buf []byte) (nextFRN uint64, records []DecodedRecord, err error) {
	if len(buf) < 8 {
		return 0, nil, nil
	}
	nextFRN = binary.LittleEndian.Uint64(buf[0:8])

	offset := 8
	for offset+4 <= len(buf) {
		rec, length, ok, decodeErr := DecodeRecord(buf[offset:])
		if decodeErr != nil {
			return nextFRN, records, decodeErr
		}
		if !ok {
			break
		}
		records = append(records, rec)
		offset += int(length)
	}
	return nextFRN, records, nil
}

// SplitJournalBuffer parses the result of an FSCTL_READ_USN_JOURNAL call: an
// 8-byte next-USN cursor followed by a packed sequence of USN V2 records.
func SplitJournalBuffer(buf []byte) (nextUSN int64, records []DecodedRecord, err error) {
	if len(buf) < 8 {
		return 0, nil, nil
	}
	nextUSN = int64(binary.LittleEndian.Uint64(buf[0:8]))

	offset := 8
	for offset+4 <= len(buf) {
		rec, length, ok, decodeErr := DecodeRecord(buf[offset:])
		if decodeErr != nil {
			return nextUSN, records, decodeErr
		}
		if !ok {
			break
		}
		records = append(records, rec)
		offset += int(length)
	}
	return nextUSN, records, nil
}
