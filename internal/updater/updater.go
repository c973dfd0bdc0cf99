// Package updater implements the USN incremental updater (C6): a
// long-running per-volume listener that reads the USN change journal from
// the last-processed position, maintains the in-memory FRN map, appends
// newly observed paths, and accumulates new grams into a delta file.
package updater

import (
	"context"
	"encoding/binary"
	"log"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/gramindex"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathstream"
	"github.com/halsted/mftsearch/internal/volume"
)

// Updater owns one volume's live journal listener. Its FRN map and
// append handles are exclusive to the goroutine driving Run; nothing else
// may touch them concurrently.
type Updater struct {
	letter byte
	paths  mftypes.ArtifactPaths
	reader volume.Reader

	frnMap *frnmap.Map
	cache  *pathstream.PrefixCache
	ignore *pathstream.IgnoreFilter

	pathsFile   *os.File
	pathsOffset uint64

	offsetsFile *os.File
	recordCount uint32

	nextFileID  mftypes.FileID
	accumulator map[string]*roaring.Bitmap

	lastUSN int64

	pollInterval       time.Duration
	gramFlushThreshold int
}

// Open seeds the updater's last-processed USN from the journal's current
// position, opens append handles to the paths and offsets files, and
// seeds the file-id counter from the offsets file's existing record
// count. frnMap is the map carried over from the bulk scan that produced
// the current artifacts; passing a fresh map is valid too (ascent will
// simply be partial until enough records accumulate), since reconstructing
// it from disk alone on process restart is not attempted (see DESIGN.md).
func Open(reader volume.Reader, paths mftypes.ArtifactPaths, frnMap *frnmap.Map, ignore *pathstream.IgnoreFilter, pollInterval time.Duration, gramFlushThreshold int) (*Updater, error) {
	jd, err := reader.QueryJournal()
	if err != nil {
		return nil, err
	}

	pf, err := os.OpenFile(paths.Paths(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "updater.Open", err)
	}
	pathsInfo, err := pf.Stat()
	if err != nil {
		pf.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "updater.Open", err)
	}

	of, err := os.OpenFile(paths.Offsets(), os.O_RDWR, 0o644)
	if err != nil {
		pf.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexMissing, "updater.Open", err)
	}
	var countBuf [4]byte
	if _, err := of.ReadAt(countBuf[:], 0); err != nil {
		pf.Close()
		of.Close()
		return nil, mftypes.NewError(mftypes.ErrKindIndexCorrupt, "updater.Open", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])

	return &Updater{
		letter:             paths.Letter,
		paths:              paths,
		reader:             reader,
		frnMap:             frnMap,
		cache:              pathstream.NewPrefixCache(),
		ignore:             ignore,
		pathsFile:          pf,
		pathsOffset:        uint64(pathsInfo.Size()),
		offsetsFile:        of,
		recordCount:        count,
		nextFileID:         mftypes.FileID(count),
		accumulator:        make(map[string]*roaring.Bitmap),
		lastUSN:            jd.NextUSN,
		pollInterval:       pollInterval,
		gramFlushThreshold: gramFlushThreshold,
	}, nil
}

// Run polls the journal until ctx is canceled, applying each record to
// the FRN map and indexing newly created or renamed entries. Cancellation
// is observed within one poll interval plus any in-flight IO, per the
// documented suspension-point contract.
func (u *Updater) Run(ctx context.Context) error {
	defer u.flushDelta()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		nextUSN, records, err := u.reader.ReadJournal(u.lastUSN, volume.ReasonAll, 0)
		if err != nil {
			log.Printf("updater[%c]: journal read failed, retrying: %v", u.letter, err)
			if !sleepCtx(ctx, u.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		if len(records) == 0 {
			if !sleepCtx(ctx, u.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		for _, rec := range records {
			u.applyRecord(rec)
		}
		u.lastUSN = nextUSN

		if len(u.accumulator) >= u.gramFlushThreshold {
			if err := u.flushDelta(); err != nil {
				log.Printf("updater[%c]: delta flush failed: %v", u.letter, err)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// applyRecord updates the FRN map per the record's reason bits. FILE_CREATE
// and RENAME_NEW_NAME both index the resulting path (a rename is treated as
// a logical re-add: the old file-id is left untouched and may surface
// stale results until the next compaction). FILE_DELETE removes the FRN
// map entry; authoritative bitmap removal is deferred to the merger, so no
// delta record is written for a deletion.
func (u *Updater) applyRecord(rec volume.DecodedRecord) {
	frn := mftypes.FRN(rec.FRN)

	if rec.Reason&volume.ReasonFileDelete != 0 {
		u.frnMap.Remove(frn)
		return
	}

	u.frnMap.Insert(frn, mftypes.FRN(rec.ParentFRN), rec.Name)

	if rec.Reason&(volume.ReasonFileCreate|volume.ReasonRenameNewName) != 0 {
		u.indexNewEntry(frn)
	}
}

// indexNewEntry ascends frn to a path, skips it if ignored, appends it to
// the paths and offsets files, and adds its base-name grams to the
// in-memory delta accumulator.
func (u *Updater) indexNewEntry(frn mftypes.FRN) error {
	path := pathstream.Ascend(u.frnMap, u.cache, u.letter, frn)
	if u.ignore.ShouldIgnore(path) {
		return nil
	}

	id := u.nextFileID
	b := []byte(path)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := u.pathsFile.Write(lenBuf[:]); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.indexNewEntry", err)
	}
	if _, err := u.pathsFile.Write(b); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.indexNewEntry", err)
	}
	recordOffset := u.pathsOffset
	u.pathsOffset += 4 + uint64(len(b))

	var offBuf [8]byte
	binary.LittleEndian.PutUint64(offBuf[:], recordOffset)
	appendPos := int64(4 + 8*u.recordCount)
	if _, err := u.offsetsFile.WriteAt(offBuf[:], appendPos); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.indexNewEntry", err)
	}
	u.recordCount++
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], u.recordCount)
	if _, err := u.offsetsFile.WriteAt(countBuf[:], 0); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.indexNewEntry", err)
	}

	u.nextFileID++

	name := gramindex.BaseName(path)
	for _, g := range gramindex.Grams(name) {
		bm, ok := u.accumulator[g]
		if !ok {
			bm = roaring.New()
			u.accumulator[g] = bm
		}
		bm.Add(uint32(id))
	}
	return nil
}

// flushDelta appends the current accumulator to the delta file as a
// sequence of {glen; gram; blen; roaring} records, then clears it.
func (u *Updater) flushDelta() error {
	if len(u.accumulator) == 0 {
		return nil
	}

	f, err := os.OpenFile(u.paths.Delta(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
	}
	defer f.Close()

	for gram, bm := range u.accumulator {
		bmBytes, err := bm.ToBytes()
		if err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
		}

		var glenBuf [4]byte
		binary.LittleEndian.PutUint32(glenBuf[:], uint32(len(gram)))
		if _, err := f.Write(glenBuf[:]); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
		}
		if _, err := f.Write([]byte(gram)); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
		}

		var blenBuf [4]byte
		binary.LittleEndian.PutUint32(blenBuf[:], uint32(len(bmBytes)))
		if _, err := f.Write(blenBuf[:]); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
		}
		if _, err := f.Write(bmBytes); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "updater.flushDelta", err)
		}
	}

	u.accumulator = make(map[string]*roaring.Bitmap)
	return nil
}

// Close closes the updater's append handles without flushing the
// accumulator; callers that want a clean shutdown should cancel Run's
// context instead, which flushes on return.
func (u *Updater) Close() error {
	var firstErr error
	if err := u.pathsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := u.offsetsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
