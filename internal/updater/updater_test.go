package updater

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/gramindex"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathreader"
	"github.com/halsted/mftsearch/internal/pathstream"
	"github.com/halsted/mftsearch/internal/query"
	"github.com/halsted/mftsearch/internal/volume"
)

type fakeReader struct {
	batches [][]volume.DecodedRecord
	next    int
}

func (f *fakeReader) QueryJournal() (volume.JournalData, error) {
	return volume.JournalData{NextUSN: 100}, nil
}

func (f *fakeReader) EnumerateRecords(uint64, int64) (uint64, []volume.DecodedRecord, bool, error) {
	return 0, nil, true, nil
}

func (f *fakeReader) ReadJournal(startUSN int64, reasonMask uint32, waitBytes uint64) (int64, []volume.DecodedRecord, error) {
	if f.next >= len(f.batches) {
		return startUSN, nil, nil
	}
	b := f.batches[f.next]
	f.next++
	return startUSN + 1, b, nil
}

func (f *fakeReader) Close() error { return nil }

func buildFixture(t *testing.T, dir string) mftypes.ArtifactPaths {
	t.Helper()
	ap := mftypes.ArtifactPaths{Root: dir, Letter: 'C'}

	w, err := pathstream.NewWriter(ap)
	require.NoError(t, err)
	_, err = w.Write(`C:\a.txt`)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	b := gramindex.NewBuilder()
	_, err = gramindex.BuildFromPathsFile(b, ap.Paths())
	require.NoError(t, err)
	require.NoError(t, b.Finalize(ap))

	return ap
}

func TestRunIndexesNewlyCreatedFile(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir)

	reader := &fakeReader{batches: [][]volume.DecodedRecord{
		{{FRN: 50, ParentFRN: uint64(mftypes.RootFRN), Reason: volume.ReasonFileCreate, Name: "newfile.txt"}},
	}}

	m := frnmap.New(0)
	ignore := pathstream.NewIgnoreFilter(nil)

	u, err := Open(reader, ap, m, ignore, 5*time.Millisecond, 1)
	require.NoError(t, err)
	defer u.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err = u.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	idx, err := query.Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("newfile.txt", 10)
	require.NoError(t, err)
	require.Contains(t, ids, mftypes.FileID(1))

	pr, err := pathreader.Open(ap)
	require.NoError(t, err)
	defer pr.Close()
	require.Equal(t, 2, pr.Count())

	got, err := pr.Get(1)
	require.NoError(t, err)
	require.Equal(t, `C:\newfile.txt`, got)
}

func TestDeleteRemovesFRNMapEntryWithoutIndexing(t *testing.T) {
	dir := t.TempDir()
	ap := buildFixture(t, dir)

	m := frnmap.New(0)
	m.Insert(mftypes.FRN(50), mftypes.RootFRN, "tempfile.txt")

	reader := &fakeReader{batches: [][]volume.DecodedRecord{
		{{FRN: 50, ParentFRN: uint64(mftypes.RootFRN), Reason: volume.ReasonFileDelete, Name: "tempfile.txt"}},
	}}
	ignore := pathstream.NewIgnoreFilter(nil)

	u, err := Open(reader, ap, m, ignore, 5*time.Millisecond, 1)
	require.NoError(t, err)
	defer u.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = u.Run(ctx)

	_, _, ok := m.Lookup(mftypes.FRN(50))
	require.False(t, ok)

	pr, err := pathreader.Open(ap)
	require.NoError(t, err)
	defer pr.Close()
	require.Equal(t, 1, pr.Count())
}
