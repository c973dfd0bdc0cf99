// Package pathreader implements the path reader (C9): random-access,
// memory-mapped reads of the paths file by file-id via the offsets table.
package pathreader

import (
	"encoding/binary"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Reader provides O(1) lookup of a path by file-id, backed by read-only
// memory maps of the paths and offsets files. Its lifetime owns those
// mappings; Close unmaps them.
type Reader struct {
	pathsFile   *os.File
	offsetsFile *os.File
	pathsMap    mmap.MMap
	offsetsMap  mmap.MMap
	count       uint32
}

// Open memory-maps the paths and offsets files for one volume.
func Open(paths mftypes.ArtifactPaths) (*Reader, error) {
	pf, err := os.Open(paths.Paths())
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "pathreader.Open", err)
	}
	of, err := os.Open(paths.Offsets())
	if err != nil {
		pf.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "pathreader.Open", err)
	}

	pm, err := mmap.Map(pf, mmap.RDONLY, 0)
	if err != nil {
		pf.Close()
		of.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.Open", err)
	}
	om, err := mmap.Map(of, mmap.RDONLY, 0)
	if err != nil {
		pm.Unmap()
		pf.Close()
		of.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.Open", err)
	}

	if len(om) < 4 {
		pm.Unmap()
		om.Unmap()
		pf.Close()
		of.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.Open", nil)
	}
	count := binary.LittleEndian.Uint32(om[0:4])

	return &Reader{
		pathsFile:   pf,
		offsetsFile: of,
		pathsMap:    pm,
		offsetsMap:  om,
		count:       count,
	}, nil
}

// Count returns the number of records in the offsets table.
func (r *Reader) Count() int { return int(r.count) }

func (r *Reader) offsetFor(id mftypes.FileID) (uint64, error) {
	if uint32(id) >= r.count {
		return 0, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.offsetFor", nil)
	}
	pos := 4 + 8*int(id)
	if pos+8 > len(r.offsetsMap) {
		return 0, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.offsetFor", nil)
	}
	return binary.LittleEndian.Uint64(r.offsetsMap[pos : pos+8]), nil
}

// Get bounds-checks id, reads its offset, then reads the length prefix and
// UTF-8 bytes at that offset. Decoding is lossy: invalid sequences are
// replaced with the Unicode replacement character.
func (r *Reader) Get(id mftypes.FileID) (string, error) {
	offset, err := r.offsetFor(id)
	if err != nil {
		return "", err
	}
	if offset+4 > uint64(len(r.pathsMap)) {
		return "", mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.Get", nil)
	}
	length := binary.LittleEndian.Uint32(r.pathsMap[offset : offset+4])
	start := offset + 4
	end := start + uint64(length)
	if end > uint64(len(r.pathsMap)) {
		return "", mftypes.NewError(mftypes.ErrKindIndexCorrupt, "pathreader.Get", nil)
	}
	raw := string(r.pathsMap[start:end])
	return strings.ToValidUTF8(raw, string(mftypes.ReplacementChar)), nil
}

// GetMany resolves every id in ids, silently skipping any that fail
// individually (missing id, corrupt offset) rather than aborting the whole
// batch.
func (r *Reader) GetMany(ids []mftypes.FileID) map[mftypes.FileID]string {
	out := make(map[mftypes.FileID]string, len(ids))
	for _, id := range ids {
		if path, err := r.Get(id); err == nil {
			out[id] = path
		}
	}
	return out
}

// Close unmaps and closes both underlying files.
func (r *Reader) Close() error {
	var firstErr error
	if err := r.pathsMap.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.offsetsMap.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.pathsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.offsetsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
