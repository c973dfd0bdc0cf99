//go:build windows

package volume

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLogicalDrives = kernel32.NewProc("GetLogicalDrives")
	procGetDriveTypeW    = kernel32.NewProc("GetDriveTypeW")
)

const driveTypeFixed = 3

// EnumerateFixedDrives returns every drive letter Windows reports as a
// fixed disk. The system drive is included whenever it is present, since
// it is always a fixed disk by definition.
func EnumerateFixedDrives() []byte {
	mask, _, _ := procGetLogicalDrives.Call()

	var letters []byte
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := byte('A' + i)
		root, err := windows.UTF16PtrFromString(string(letter) + `:\`)
		if err != nil {
			continue
		}
		driveType, _, _ := procGetDriveTypeW.Call(uintptr(unsafe.Pointer(root)))
		if driveType == driveTypeFixed {
			letters = append(letters, letter)
		}
	}
	return letters
}
