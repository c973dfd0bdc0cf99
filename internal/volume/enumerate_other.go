//go:build !windows

package volume

import "os"

// EnumerateFixedDrives falls back to just the configured SystemDrive
// letter (default 'C') off Windows, where no drive-enumeration API
// exists; every IOCTL this module issues against it will simply fail
// with ErrKindUnsupportedPlatform, matching the platform stub elsewhere.
func EnumerateFixedDrives() []byte {
	v := os.Getenv("SystemDrive")
	if len(v) == 0 {
		return []byte{'C'}
	}
	return []byte{v[0]}
}
