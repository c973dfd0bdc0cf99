// Package query implements the query engine (C8): memory-mapped reads of
// the FST and bitmap side file, plus the small in-memory delta bitmap
// accumulated since the last compaction, intersected to answer a search.
package query

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"
	"github.com/edsrzf/mmap-go"

	"github.com/halsted/mftsearch/internal/gramindex"
	"github.com/halsted/mftsearch/internal/mftypes"
)

// Index answers searches against one volume's primary FST/bitmaps plus its
// delta, all opened once and held for the lifetime of the handle.
type Index struct {
	paths mftypes.ArtifactPaths

	fst *vellum.FST

	bitmapsFile *os.File
	bitmapsMap  mmap.MMap

	delta map[string]*roaring.Bitmap

	version uint64
}

// Open memory-maps the FST and bitmaps file for one volume and loads its
// delta bitmap (if any) fully into memory, since a delta is kept small by
// the merger's size threshold.
func Open(paths mftypes.ArtifactPaths) (*Index, error) {
	fst, err := vellum.Open(paths.FST())
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "query.Open", err)
	}

	bf, err := os.Open(paths.Bitmaps())
	if err != nil {
		fst.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "query.Open", err)
	}
	bm, err := mmap.Map(bf, mmap.RDONLY, 0)
	if err != nil {
		fst.Close()
		bf.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.Open", err)
	}

	delta, err := loadDelta(paths.Delta())
	if err != nil {
		bm.Unmap()
		bf.Close()
		fst.Close()
		return nil, err
	}

	version, err := mftypes.ReadVersionFile(paths.IndexVersion())
	if err != nil {
		bm.Unmap()
		bf.Close()
		fst.Close()
		return nil, err
	}

	return &Index{
		paths:       paths,
		fst:         fst,
		bitmapsFile: bf,
		bitmapsMap:  bm,
		delta:       delta,
		version:     version,
	}, nil
}

// loadDelta reads the append-only delta file, which holds a sequence of
// length-prefixed (gram, bitmap-bytes) records; records repeating a gram
// are unioned into one bitmap, as the merger does.
func loadDelta(path string) (map[string]*roaring.Bitmap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.loadDelta", err)
	}

	out := make(map[string]*roaring.Bitmap)
	var pos int
	for pos < len(data) {
		if pos+4 > len(data) {
			break
		}
		glen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+glen > len(data) {
			break
		}
		gram := string(data[pos : pos+glen])
		pos += glen

		if pos+4 > len(data) {
			break
		}
		blen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+blen > len(data) {
			break
		}
		bm := roaring.New()
		if _, err := bm.FromBuffer(data[pos : pos+blen]); err != nil {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.loadDelta", err)
		}
		pos += blen

		if existing, ok := out[gram]; ok {
			existing.Or(bm)
		} else {
			out[gram] = bm
		}
	}
	return out, nil
}

// NeedsReload reports whether the on-disk index version has advanced past
// the version this handle was opened with, meaning the merger has
// compacted the delta and the caller should Close and re-Open.
func (idx *Index) NeedsReload() bool {
	current, err := mftypes.ReadVersionFile(idx.paths.IndexVersion())
	if err != nil {
		return false
	}
	return current > idx.version
}

// Version returns the index generation this handle was opened against.
func (idx *Index) Version() uint64 { return idx.version }

func (idx *Index) bitmapForGram(gram string) (*roaring.Bitmap, error) {
	var result *roaring.Bitmap

	offset, exists, err := idx.fst.Get([]byte(gram))
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.bitmapForGram", err)
	}
	if exists {
		if offset+4 > uint64(len(idx.bitmapsMap)) {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.bitmapForGram", nil)
		}
		length := binary.LittleEndian.Uint32(idx.bitmapsMap[offset : offset+4])
		start := offset + 4
		end := start + uint64(length)
		if end > uint64(len(idx.bitmapsMap)) {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.bitmapForGram", nil)
		}
		result = roaring.New()
		if _, err := result.FromBuffer(idx.bitmapsMap[start:end]); err != nil {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "query.bitmapForGram", err)
		}
	}

	if deltaBM, ok := idx.delta[gram]; ok {
		if result == nil {
			result = deltaBM.Clone()
		} else {
			result.Or(deltaBM)
		}
	}

	if result == nil {
		result = roaring.New()
	}
	return result, nil
}

// Search tokenizes query the same way the index builder tokenizes a base
// name, looks up each gram's bitmap, and intersects them starting from the
// smallest to minimize work, returning up to limit matching file-ids in
// ascending order. Candidates are not verified: 3-gram AND-intersection may
// admit file-ids whose base name does not contain the query as a substring,
// and neither this method nor the cache/router re-checks resolved paths.
func (idx *Index) Search(query string, limit int) ([]mftypes.FileID, error) {
	grams := gramindex.Grams(query)
	if len(grams) == 0 {
		return nil, nil
	}

	bitmaps := make([]*roaring.Bitmap, 0, len(grams))
	for _, g := range grams {
		bm, err := idx.bitmapForGram(g)
		if err != nil {
			return nil, err
		}
		if bm.IsEmpty() {
			return nil, nil
		}
		bitmaps = append(bitmaps, bm)
	}

	sort.Slice(bitmaps, func(i, j int) bool {
		return bitmaps[i].GetCardinality() < bitmaps[j].GetCardinality()
	})

	result := bitmaps[0].Clone()
	for _, bm := range bitmaps[1:] {
		result.And(bm)
		if result.IsEmpty() {
			return nil, nil
		}
	}

	ids := result.ToArray()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]mftypes.FileID, len(ids))
	for i, v := range ids {
		out[i] = mftypes.FileID(v)
	}
	return out, nil
}

// Close unmaps the bitmaps file and closes both underlying file handles.
func (idx *Index) Close() error {
	var firstErr error
	if err := idx.bitmapsMap.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := idx.bitmapsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := idx.fst.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
