package volume

// Reader opens one NTFS volume and exposes the four primitive operations
// the rest of the bulk-scan and incremental-update pipeline is built on.
// Implementations are platform-specific (see reader_windows.go); a
// non-Windows stub backs every method but Close with ErrKindUnsupportedPlatform so the
// module still builds and its pure logic (tokenizer, FST, roaring, path
// reconstruction) is testable off Windows.
type Reader interface {
	// QueryJournal returns the current journal id and next-USN, creating
	// the journal first if it does not yet exist.
	QueryJournal() (JournalData, error)

	// EnumerateRecords wraps the MFT enumeration IOCTL starting at
	// startFRN, returning the next-FRN cursor and decoded records. eof is
	// true once the enumeration has reached ERROR_HANDLE_EOF.
	EnumerateRecords(startFRN uint64, highUSN int64) (nextFRN uint64, records []DecodedRecord, eof bool, err error)

	// ReadJournal performs a blocking read of the USN journal starting at
	// startUSN. waitBytes of zero returns immediately even if empty;
	// greater than zero blocks until at least one record arrives.
	ReadJournal(startUSN int64, reasonMask uint32, waitBytes uint64) (nextUSN int64, records []DecodedRecord, err error)

	// Close releases the underlying volume handle.
	Close() error
}

// AdminRightsChecker reports whether the current process holds
// administrator privileges, so callers can short-circuit straight to
// ErrKindNeedsElevation instead of paying for a failed CreateFile.
type AdminRightsChecker interface {
	CheckAdminRights() bool
}
