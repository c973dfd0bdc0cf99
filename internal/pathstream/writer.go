package pathstream

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// Writer accumulates surviving paths into a temp paths file, assigning
// file-ids by emission order, then atomically renames the temp file to its
// canonical name on Finalize. It also tracks, per path, the statically
// derived priority — kept only for the duration of the build, since
// priority is a pure function of path text and is recomputed on demand by
// mftypes.ClassifyPriority rather than persisted as its own artifact (see
// DESIGN.md).
type Writer struct {
	paths      mftypes.ArtifactPaths
	tmpFile    *os.File
	buffered   *bufio.Writer
	nextID     mftypes.FileID
	priorities []mftypes.Priority
}

// NewWriter opens the temp paths file for the given volume's artifacts.
func NewWriter(paths mftypes.ArtifactPaths) (*Writer, error) {
	f, err := os.Create(paths.PathsTmp())
	if err != nil {
		return nil, mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.NewWriter", err)
	}
	return &Writer{
		paths:    paths,
		tmpFile:  f,
		buffered: bufio.NewWriterSize(f, 1<<20),
	}, nil
}

// Write appends one path record ({u32 len; utf8 bytes}) and returns the
// file-id assigned to it (equal to emission order).
func (w *Writer) Write(path string) (mftypes.FileID, error) {
	id := w.nextID
	b := []byte(path)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.buffered.Write(lenBuf[:]); err != nil {
		return 0, mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Write", err)
	}
	if _, err := w.buffered.Write(b); err != nil {
		return 0, mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Write", err)
	}

	lowerPath := toLowerASCIIAware(path)
	w.priorities = append(w.priorities, mftypes.ClassifyPriority(lowerPath))
	w.nextID++

	return id, nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return int(w.nextID) }

// Priorities returns the priority assigned to each file-id in emission
// order.
func (w *Writer) Priorities() []mftypes.Priority { return w.priorities }

// Finalize flushes buffered output and atomically renames the temp paths
// file to its canonical name.
func (w *Writer) Finalize() error {
	if err := w.buffered.Flush(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Finalize", err)
	}
	if err := w.tmpFile.Sync(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Finalize", err)
	}
	if err := w.tmpFile.Close(); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Finalize", err)
	}
	if err := os.Rename(w.paths.PathsTmp(), w.paths.Paths()); err != nil {
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "pathstream.Writer.Finalize", err)
	}
	return nil
}

// Abort closes and removes the temp file without renaming it, for the
// build-failure cleanup path.
func (w *Writer) Abort() {
	_ = w.tmpFile.Close()
	_ = os.Remove(w.paths.PathsTmp())
}

// toLowerASCIIAware matches the tokenizer's ASCII-aware lowercasing: only
// ASCII bytes are folded, non-ASCII UTF-8 code units pass through
// unchanged.
func toLowerASCIIAware(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
