package pathreader

import (
	"path/filepath"
	"testing"

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

func TestGetReturnsExactBytesWritten(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		`C:\Program Files\Chrome\chrome.exe`,
		`C:\Users\x\chrome_notes.txt`,
	}
	ap := buildFixture(t, dir, paths)

	r, err := Open(ap)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.Count())

	got0, err := r.Get(0)
	require.NoError(t, err)
	require.Equal(t, paths[0], got0)

	got1, err := r.Get(1)
	require.NoError(t, err)
	require.Equal(t, paths[1], got1)
}

func TestGetOutOfRangeIsError(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{`C:\a.txt`})

	r, err := Open(ap)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get(99)
	require.Error(t, err)
}

func TestGetManySkipsFailures(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir, []string{`C:\a.txt`, `C:\b.txt`})

	r, err := Open(ap)
	require.NoError(t, err)
	defer r.Close()

	results := r.GetMany([]mftypes.FileID{0, 1, 50})
	require.Len(t, results, 2)
	require.Equal(t, `C:\a.txt`, results[0])
}

func TestOpenMissingArtifactsIsIndexMissing(t *testing.T) {
	dir := t.TempDir()
	ap := mftypes.ArtifactPaths{Root: filepath.Join(dir, "nope"), Letter: 'C'}
	_, err := Open(ap)
	require.Error(t, err)
	var typed *mftypes.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, mftypes.ErrKindIndexMissing, typed.Kind)
}
