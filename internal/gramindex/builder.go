package gramindex

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Builder accumulates a gram -> bitmap-of-file-ids map while scanning a
// paths file, then serializes it as a sorted FST plus a roaring-bitmap side
// file, exactly as described for the primary index.
type Builder struct {
	grams   map[string]*roaring.Bitmap
	offsets []uint64
}

// NewBuilder creates an empty accumulator.
func NewBuilder() *Builder {
	return &Builder{grams: make(map[string]*roaring.Bitmap)}
}

// AddPath records file-id's grams (tokenized from its base name) and its
// byte offset in the paths file, maintaining the offsets table in lockstep
// with IDs assigned by emission order.
func (b *Builder) AddPath(id mftypes.FileID, path string, byteOffset uint64) {
	for int(id) >= len(b.offsets) {
		b.offsets = append(b.offsets, 0)
	}
	b.offsets[id] = byteOffset

	name := BaseName(path)
	for _, g := range Grams(name) {
		bm, ok := b.grams[g]
		if !ok {
			bm = roaring.New()
			b.grams[g] = bm
		}
		bm.Add(uint32(id))
	}
}

// BuildFromPathsFile streams a paths file end to end, assigning sequential
// file-ids and indexing each record's base name. It returns the total
// number of records read.
func BuildFromPathsFile(b *Builder, pathsFile string) (int, error) {
	f, err := os.Open(pathsFile)
	if err != nil {
		return 0, mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.BuildFromPathsFile", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	var offset uint64
	var id mftypes.FileID

	for {
		recordStart := offset
		var lenBuf [4]byte
		n, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return int(id), mftypes.NewError(mftypes.ErrKindIndexCorrupt, "gramindex.BuildFromPathsFile", err)
		}
		offset += 4

		length := binary.LittleEndian.Uint32(lenBuf[:])
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return int(id), mftypes.NewError(mftypes.ErrKindIndexCorrupt, "gramindex.BuildFromPathsFile", err)
		}
		offset += uint64(length)

		b.AddPath(id, string(buf), recordStart)
		id++
	}

	return int(id), nil
}

// Finalize writes the sorted FST (gram -> bitmap-file offset) and the
// bitmaps side file, then the offsets table, per the on-disk layout.
func (b *Builder) Finalize(paths mftypes.ArtifactPaths) error {
	if err := b.writeFSTAndBitmaps(paths.FST(), paths.Bitmaps()); err != nil {
		return err
	}
	return b.writeOffsets(paths.Offsets())
}

func (b *Builder) writeFSTAndBitmaps(fstPath, bitmapsPath string) error {
	bitmapsFile, err := os.Create(bitmapsPath)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}
	defer bitmapsFile.Close()
	bitmapsWriter := bufio.NewWriterSize(bitmapsFile, 1<<20)

	fstFile, err := os.Create(fstPath)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}
	defer fstFile.Close()
	fstWriter := bufio.NewWriterSize(fstFile, 1<<20)

	fstBuilder, err := vellum.New(fstWriter, nil)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}

	grams := make([]string, 0, len(b.grams))
	for g := range b.grams {
		grams = append(grams, g)
	}
	sort.Strings(grams)

	var currentOffset uint64
	for _, g := range grams {
		bm := b.grams[g]
		bmBytes, err := bm.ToBytes()
		if err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
		}

		if err := fstBuilder.Insert([]byte(g), currentOffset); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
		}

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(bmBytes)))
		if _, err := bitmapsWriter.Write(lenBuf[:]); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
		}
		if _, err := bitmapsWriter.Write(bmBytes); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
		}
		currentOffset += 4 + uint64(len(bmBytes))
	}

	if err := fstBuilder.Close(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}
	if err := fstWriter.Flush(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}
	if err := bitmapsWriter.Flush(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.Finalize", err)
	}
	return nil
}

func (b *Builder) writeOffsets(offsetsPath string) error {
	f, err := os.Create(offsetsPath)
	if err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.writeOffsets", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.offsets)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.writeOffsets", err)
	}

	for _, off := range b.offsets {
		var offBuf [8]byte
		binary.LittleEndian.PutUint64(offBuf[:], off)
		if _, err := w.Write(offBuf[:]); err != nil {
			return mftypes.NewError(mftypes.ErrKindBuildFailure, "gramindex.Builder.writeOffsets", err)
		}
	}
	return w.Flush()
}
