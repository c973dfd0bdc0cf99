// Package merger implements the delta merger (C7): an idle watchdog that
// wakes on a fixed cadence, and when the delta file exceeds a size
// threshold, streams the existing FST+bitmaps and the delta into a new
// FST+bitmaps pair, atomically replaces the primary, deletes the delta,
// and bumps the version counter.
package merger

import (
	"bufio"
	"context"
	"encoding/binary"
	"log"
	"os"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"
	"github.com/edsrzf/mmap-go"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Merger compacts one volume's delta into its primary index.
type Merger struct {
	paths          mftypes.ArtifactPaths
	thresholdBytes int64
	interval       time.Duration
}

// New builds a Merger for one volume. thresholdMB is the delta-file size
// that triggers a compaction; interval is the wake cadence.
func New(paths mftypes.ArtifactPaths, thresholdMB int64, interval time.Duration) *Merger {
	return &Merger{paths: paths, thresholdBytes: thresholdMB * 1024 * 1024, interval: interval}
}

// Run wakes every interval and compacts the delta if it has grown past
// the threshold, until ctx is canceled.
func (m *Merger) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.shouldMerge() {
				if err := m.MergeOnce(); err != nil {
					log.Printf("merger[%c]: merge failed: %v", m.paths.Letter, err)
				} else {
					log.Printf("merger[%c]: merge complete", m.paths.Letter)
				}
			}
		}
	}
}

func (m *Merger) shouldMerge() bool {
	info, err := os.Stat(m.paths.Delta())
	if err != nil {
		return false
	}
	return info.Size() >= m.thresholdBytes
}

// MergeOnce runs one compaction pass unconditionally, regardless of the
// delta's current size. On any failure the partially written `.new` files
// are removed and the existing primary is left untouched.
func (m *Merger) MergeOnce() error {
	working, err := m.loadPrimary()
	if err != nil {
		return err
	}
	if err := m.unionDelta(working); err != nil {
		return err
	}

	if err := m.writeNewPrimary(working); err != nil {
		m.cleanupNew()
		return err
	}

	if err := os.Rename(m.paths.FSTNew(), m.paths.FST()); err != nil {
		m.cleanupNew()
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.MergeOnce", err)
	}
	if err := os.Rename(m.paths.BitmapsNew(), m.paths.Bitmaps()); err != nil {
		m.cleanupNew()
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.MergeOnce", err)
	}

	if err := os.Remove(m.paths.Delta()); err != nil && !os.IsNotExist(err) {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.MergeOnce", err)
	}

	version, err := mftypes.ReadVersionFile(m.paths.IndexVersion())
	if err != nil {
		return err
	}
	return mftypes.WriteVersionFile(m.paths.IndexVersion(), version+1)
}

func (m *Merger) cleanupNew() {
	_ = os.Remove(m.paths.FSTNew())
	_ = os.Remove(m.paths.BitmapsNew())
}

// loadPrimary streams the existing FST in key order and deserializes each
// gram's bitmap, building the working map the delta is then unioned into.
// A missing primary (no prior bulk scan) yields an empty working map; the
// merge then produces a primary built from the delta alone.
func (m *Merger) loadPrimary() (map[string]*roaring.Bitmap, error) {
	working := make(map[string]*roaring.Bitmap)

	fst, err := vellum.Open(m.paths.FST())
	if os.IsNotExist(err) {
		return working, nil
	}
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.loadPrimary", err)
	}
	defer fst.Close()

	bf, err := os.Open(m.paths.Bitmaps())
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.loadPrimary", err)
	}
	defer bf.Close()
	bm, err := mmap.Map(bf, mmap.RDONLY, 0)
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.loadPrimary", err)
	}
	defer bm.Unmap()

	itr, err := fst.Iterator(nil, nil)
	for err == nil {
		key, offset := itr.Current()
		gram := string(key)

		if offset+4 > uint64(len(bm)) {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "merger.loadPrimary", nil)
		}
		length := binary.LittleEndian.Uint32(bm[offset : offset+4])
		start := offset + 4
		end := start + uint64(length)
		if end > uint64(len(bm)) {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "merger.loadPrimary", nil)
		}

		bitmap := roaring.New()
		if _, err := bitmap.FromBuffer(bm[start:end]); err != nil {
			return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "merger.loadPrimary", err)
		}
		working[gram] = bitmap

		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.loadPrimary", err)
	}

	return working, nil
}

// unionDelta streams the delta file and unions each record's bitmap into
// working, inserting a new entry for a gram not yet present.
func (m *Merger) unionDelta(working map[string]*roaring.Bitmap) error {
	data, err := os.ReadFile(m.paths.Delta())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.unionDelta", err)
	}

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
			return mftypes.NewError(mftypes.ErrKindIndexCorrupt, "merger.unionDelta", err)
		}
		pos += blen

		if existing, ok := working[gram]; ok {
			existing.Or(bm)
		} else {
			working[gram] = bm
		}
	}
	return nil
}

// writeNewPrimary serializes working as a sorted FST plus bitmaps side
// file under the `.new` suffixed names, using the same layout as the
// index builder.
func (m *Merger) writeNewPrimary(working map[string]*roaring.Bitmap) error {
	bitmapsFile, err := os.Create(m.paths.BitmapsNew())
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
	}
	defer bitmapsFile.Close()
	bitmapsWriter := bufio.NewWriterSize(bitmapsFile, 1<<20)

	fstFile, err := os.Create(m.paths.FSTNew())
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
	}
	defer fstFile.Close()
	fstWriter := bufio.NewWriterSize(fstFile, 1<<20)

	fstBuilder, err := vellum.New(fstWriter, nil)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
	}

	grams := make([]string, 0, len(working))
	for g := range working {
		grams = append(grams, g)
	}
	sort.Strings(grams)

	var offset uint64
	for _, g := range grams {
		bmBytes, err := working[g].ToBytes()
		if err != nil {
			return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
		}
		if err := fstBuilder.Insert([]byte(g), offset); err != nil {
			return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
		}

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(bmBytes)))
		if _, err := bitmapsWriter.Write(lenBuf[:]); err != nil {
			return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
		}
		if _, err := bitmapsWriter.Write(bmBytes); err != nil {
			return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
		}
		offset += 4 + uint64(len(bmBytes))
	}

	if err := fstBuilder.Close(); err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
	}
	if err := fstWriter.Flush(); err != nil {
		return mftypes.NewError(mftypes.ErrKindMergeFailure, "merger.writeNewPrimary", err)
	}
	return bitmapsWriter.Flush()
}
