//go:build windows

package scancoord

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// ioctlStorageQueryProperty is IOCTL_STORAGE_QUERY_PROPERTY.
const ioctlStorageQueryProperty uint32 = 0x2D1400

// storagePropertyQuery mirrors STORAGE_PROPERTY_QUERY for a
// StorageDeviceProperty / PropertyStandardQuery request.
type storagePropertyQuery struct {
	PropertyID uint32
	QueryType  uint32
	// AdditionalParameters is unused for this query type; DeviceIoControl
	// only reads the first 8 bytes.
	AdditionalParameters byte
}

const (
	storageDeviceProperty    uint32 = 0
	propertyStandardQuery    uint32 = 0
	busTypeSata              byte   = 0x0B
	busTypeAta               byte   = 0x03
	busTypeNvme              byte   = 0x11
	storageDeviceDescOffsetBusType = 28
)

// WindowsDiskKindDetector classifies a drive letter's backing disk via
// IOCTL_STORAGE_QUERY_PROPERTY, the same IOCTL used by disk-management
// utilities to report bus type. NVMe is always SSD; SATA/ATA falls back to
// the system-drive heuristic (the system drive is usually the fastest
// disk in a machine); any other or unrecognized bus type is treated as
// HDD, matching the documented "unknowns are HDD" fallback.
type WindowsDiskKindDetector struct{}

// platformDetector aliases the build-tagged detector RunAll's default
// Coordinator uses.
type platformDetector = WindowsDiskKindDetector

func (WindowsDiskKindDetector) DetectDiskKind(letter byte) mftypes.DiskKind {
	busType, err := queryBusType(letter)
	if err != nil {
		return mftypes.DiskKindHDD
	}
	switch busType {
	case busTypeNvme:
		return mftypes.DiskKindSSD
	case busTypeSata, busTypeAta:
		if letter == systemDriveLetter() {
			return mftypes.DiskKindSSD
		}
		return mftypes.DiskKindHDD
	default:
		return mftypes.DiskKindHDD
	}
}

func queryBusType(letter byte) (byte, error) {
	path := fmt.Sprintf(`\\.\%c:`, letter)
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	h, err := windows.CreateFile(
		p,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	query := storagePropertyQuery{PropertyID: storageDeviceProperty, QueryType: propertyStandardQuery}
	out := make([]byte, 1024)
	var bytesReturned uint32

	err = windows.DeviceIoControl(
		h,
		ioctlStorageQueryProperty,
		(*byte)(unsafe.Pointer(&query)),
		uint32(unsafe.Sizeof(query)),
		&out[0],
		uint32(len(out)),
		&bytesReturned,
		nil,
	)
	if err != nil {
		return 0, err
	}
	if bytesReturned < storageDeviceDescOffsetBusType+1 {
		return 0, fmt.Errorf("short STORAGE_DEVICE_DESCRIPTOR response for %c:", letter)
	}
	return out[storageDeviceDescOffsetBusType], nil
}

// systemDriveLetter reads the SystemDrive environment variable, falling
// back to 'C' if unset.
func systemDriveLetter() byte {
	v := os.Getenv("SystemDrive")
	if len(v) == 0 {
		return 'C'
	}
	return v[0]
}
