package query

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"

	"github.com/halsted/mftsearch/internal/gramindex"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathstream"
)

func buildFixture(t *testing.T, dir string, paths []string) mftypes.ArtifactPaths {
	t.Helper()
	ap := mftypes.ArtifactPaths{Root: dir, Letter: 'C'}

	w, err := pathstream.NewWriter(ap)
	require.NoError(t, err)
	for _, p := range paths {
		_, err := w.Write(p)
		require.NoError(t, err)
	}
	require.NoError(t, w.Finalize())

	b := gramindex.NewBuilder()
	_, err = gramindex.BuildFromPathsFile(b, ap.Paths())
	require.NoError(t, err)
	require.NoError(t, b.Finalize(ap))

	return ap
}

func TestSearchFindsExactGram(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{
		`C:\Program Files\Chrome\chrome.exe`,
		`C:\Users\x\notes.txt`,
	})

	idx, err := Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("chrome.exe", 10)
	require.NoError(t, err)
	require.Equal(t, []mftypes.FileID{0}, ids)
}

func TestSearchNoMatchReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{`C:\a.txt`})

	idx, err := Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("zzz", 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestSearchRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{
		`C:\a\report.docx`,
		`C:\b\report.docx`,
		`C:\c\report.docx`,
	})

	idx, err := Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("report.docx", 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func writeDeltaFile(t *testing.T, path string, gram string, ids ...uint32) {
	t.Helper()
	bm := roaring.New()
	for _, id := range ids {
		bm.Add(id)
	}
	bmBytes, err := bm.ToBytes()
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var glenBuf [4]byte
	binary.LittleEndian.PutUint32(glenBuf[:], uint32(len(gram)))
	_, err = f.Write(glenBuf[:])
	require.NoError(t, err)
	_, err = f.Write([]byte(gram))
	require.NoError(t, err)

	var blenBuf [4]byte
	binary.LittleEndian.PutUint32(blenBuf[:], uint32(len(bmBytes)))
	_, err = f.Write(blenBuf[:])
	require.NoError(t, err)
	_, err = f.Write(bmBytes)
	require.NoError(t, err)
}

func TestSearchUnionsDeltaBitmap(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{`C:\a\report.docx`})

	// file-id 7 exists only in the delta, simulating a file created after
	// the last bulk scan and observed through the incremental updater. A
	// single-gram query exercises the union without also requiring an
	// intersection against grams the delta entry was never added to.
	writeDeltaFile(t, ap.Delta(), "doc", 7)

	idx, err := Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("doc", 10)
	require.NoError(t, err)
	require.Contains(t, ids, mftypes.FileID(0))
	require.Contains(t, ids, mftypes.FileID(7))
}

func TestNeedsReloadReflectsVersionBump(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{`C:\a.txt`})

	idx, err := Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	require.False(t, idx.NeedsReload())

	require.NoError(t, mftypes.WriteVersionFile(ap.IndexVersion(), idx.Version()+1))
	require.True(t, idx.NeedsReload())
}

func TestOpenMissingArtifactsIsIndexMissing(t *testing.T) {
	dir := t.TempDir()
	ap := mftypes.ArtifactPaths{Root: dir, Letter: 'C'}
	_, err := Open(ap)
	require.Error(t, err)
	var typed *mftypes.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, mftypes.ErrKindIndexMissing, typed.Kind)
}
