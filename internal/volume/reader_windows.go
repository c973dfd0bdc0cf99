//go:build windows

package volume

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// mftEnumData mirrors MFT_ENUM_DATA_V0.
type mftEnumData struct {
	StartFileReferenceNumber uint64
	LowUSN                   int64
	HighUSN                  int64
}

// createUsnJournalData mirrors CREATE_USN_JOURNAL_DATA.
type createUsnJournalData struct {
	MaximumSize     uint64
	AllocationDelta uint64
}

// readUsnJournalData mirrors READ_USN_JOURNAL_DATA_V0.
type readUsnJournalData struct {
	StartUSN          int64
	ReasonMask        uint32
	ReturnOnlyOnClose uint32
	Timeout           uint64
	BytesToWaitFor    uint64
	UsnJournalID      uint64
}

const (
	enumBufferSize    = 1 << 20 // 1MB, matches the original bulk-scan buffer
	journalBufferSize = 1 << 16
	errorHandleEOF    = 38
)

// WindowsReader is the Windows implementation of Reader, built directly on
// golang.org/x/sys/windows.CreateFile/DeviceIoControl — the same shape used
// by go-winio's internal/fs package and the Microsoft bindfilter driver
// (CreateFile with FILE_FLAG_BACKUP_SEMANTICS, then raw DeviceIoControl
// calls).
type WindowsReader struct {
	letter    byte
	handle    windows.Handle
	journalID uint64
}

// CheckAdminRights reports whether the current process token is elevated.
func CheckAdminRights() bool {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	token := windows.Token(0)
	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

// Open opens the given drive letter's volume handle in read mode with
// backup semantics, shared read/write.
func Open(letter byte) (*WindowsReader, error) {
	if !CheckAdminRights() {
		return nil, mftypes.NewError(mftypes.ErrKindNeedsElevation, "volume.Open", fmt.Errorf("administrator privileges required to open volume %c:", letter))
	}

	path := fmt.Sprintf(`\\.\%c:`, letter)
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.Open", err)
	}

	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.Open", err)
	}

	return &WindowsReader{letter: letter, handle: h}, nil
}

func (r *WindowsReader) Close() error {
	return windows.CloseHandle(r.handle)
}

func (r *WindowsReader) QueryJournal() (JournalData, error) {
	var raw [56]byte
	var bytesReturned uint32

	err := windows.DeviceIoControl(r.handle, FsctlQueryUsnJournal, nil, 0, &raw[0], uint32(len(raw)), &bytesReturned, nil)
	if err != nil {
		if err := r.createUsnJournal(); err != nil {
			return JournalData{}, err
		}
		return r.QueryJournal()
	}

	jd := JournalData{
		JournalID:       binary.LittleEndian.Uint64(raw[0:8]),
		FirstUSN:        int64(binary.LittleEndian.Uint64(raw[8:16])),
		NextUSN:         int64(binary.LittleEndian.Uint64(raw[16:24])),
		LowestValidUSN:  int64(binary.LittleEndian.Uint64(raw[24:32])),
		MaxUSN:          int64(binary.LittleEndian.Uint64(raw[32:40])),
		MaximumSize:     binary.LittleEndian.Uint64(raw[40:48]),
		AllocationDelta: binary.LittleEndian.Uint64(raw[48:56]),
	}
	r.journalID = jd.JournalID
	return jd, nil
}

func (r *WindowsReader) createUsnJournal() error {
	data := createUsnJournalData{
		MaximumSize:     0x800000,
		AllocationDelta: 0x100000,
	}
	var bytesReturned uint32
	err := windows.DeviceIoControl(
		r.handle,
		FsctlCreateUsnJournal,
		(*byte)(unsafe.Pointer(&data)),
		uint32(unsafe.Sizeof(data)),
		nil, 0,
		&bytesReturned,
		nil,
	)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindJournalUnavailable, "volume.createUsnJournal", err)
	}
	return nil
}

func (r *WindowsReader) EnumerateRecords(startFRN uint64, highUSN int64) (uint64, []DecodedRecord, bool, error) {
	enumData := mftEnumData{StartFileReferenceNumber: startFRN, LowUSN: 0, HighUSN: highUSN}
	buf := make([]byte, enumBufferSize)
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		r.handle,
		FsctlEnumUsnData,
		(*byte)(unsafe.Pointer(&enumData)),
		uint32(unsafe.Sizeof(enumData)),
		&buf[0],
		uint32(len(buf)),
		&bytesReturned,
		nil,
	)
	if err != nil {
		if err == windows.ERROR_HANDLE_EOF {
			return 0, nil, true, nil
		}
		return 0, nil, false, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.EnumerateRecords", err)
	}
	if bytesReturned < 8 {
		return 0, nil, true, nil
	}

	nextFRN, records, splitErr := SplitEnumBuffer(buf[:bytesReturned])
	if splitErr != nil {
		return 0, nil, false, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.EnumerateRecords", splitErr)
	}
	return nextFRN, records, false, nil
}

func (r *WindowsReader) ReadJournal(startUSN int64, reasonMask uint32, waitBytes uint64) (int64, []DecodedRecord, error) {
	readData := readUsnJournalData{
		StartUSN:          startUSN,
		ReasonMask:        reasonMask,
		ReturnOnlyOnClose: 0,
		Timeout:           0,
		BytesToWaitFor:    waitBytes,
		UsnJournalID:      r.journalID,
	}
	buf := make([]byte, journalBufferSize)
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		r.handle,
		FsctlReadUsnJournal,
		(*byte)(unsafe.Pointer(&readData)),
		uint32(unsafe.Sizeof(readData)),
		&buf[0],
		uint32(len(buf)),
		&bytesReturned,
		nil,
	)
	if err != nil {
		return startUSN, nil, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.ReadJournal", err)
	}
	if bytesReturned < 8 {
		return startUSN, nil, nil
	}

	nextUSN, records, splitErr := SplitJournalBuffer(buf[:bytesReturned])
	if splitErr != nil {
		return startUSN, nil, mftypes.NewError(mftypes.ErrKindVolumeIO, "volume.ReadJournal", splitErr)
	}
	return nextUSN, records, nil
}
