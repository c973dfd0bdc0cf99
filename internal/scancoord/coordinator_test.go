package scancoord

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halsted/mftsearch/internal/config"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/query"
	"github.com/halsted/mftsearch/internal/volume"
)

// fakeReader is an in-memory volume.Reader backing one canned batch of
// records, so the pipeline can be exercised without a real NTFS volume.
type fakeReader struct {
	records []volume.DecodedRecord
	served  bool
}

func (f *fakeReader) QueryJournal() (volume.JournalData, error) {
	return volume.JournalData{NextUSN: 100}, nil
}

func (f *fakeReader) EnumerateRecords(startFRN uint64, highUSN int64) (uint64, []volume.DecodedRecord, bool, error) {
	if f.served {
		return 0, nil, true, nil
	}
	f.served = true
	return 0, f.records, true, nil
}

func (f *fakeReader) ReadJournal(startUSN int64, reasonMask uint32, waitBytes uint64) (int64, []volume.DecodedRecord, error) {
	return startUSN, nil, nil
}

func (f *fakeReader) Close() error { return nil }

type fakeDetector struct {
	kind mftypes.DiskKind
}

func (d fakeDetector) DetectDiskKind(byte) mftypes.DiskKind { return d.kind }

func newFixtureReader() *fakeReader {
	return &fakeReader{records: []volume.DecodedRecord{
		{FRN: 10, ParentFRN: uint64(mftypes.RootFRN), Name: "Users"},
		{FRN: 20, ParentFRN: 10, Name: "notes.txt"},
		{FRN: 30, ParentFRN: 10, Name: "report.docx"},
	}}
}

func TestRunAllBuildsQueryableArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ArtifactsRoot: dir, FormatVersion: mftypes.CurrentFormatVersion}

	reader := newFixtureReader()
	c := &Coordinator{
		Cfg: cfg,
		Opener: func(letter byte) (volume.Reader, error) {
			return reader, nil
		},
		Detector: fakeDetector{kind: mftypes.DiskKindSSD},
	}

	results := c.RunAll(context.Background(), []byte{'C'})
	require.NoError(t, results['C'])

	ap := mftypes.ArtifactPaths{Root: dir, Letter: 'C'}
	_, err := os.Stat(ap.Paths())
	require.NoError(t, err)
	_, err = os.Stat(ap.FST())
	require.NoError(t, err)

	idx, err := query.Open(ap)
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.Search("notes.txt", 10)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
}

func TestRunAllContinuesAfterOneVolumeFails(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ArtifactsRoot: dir, FormatVersion: mftypes.CurrentFormatVersion}

	c := &Coordinator{
		Cfg: cfg,
		Opener: func(letter byte) (volume.Reader, error) {
			if letter == 'D' {
				return nil, mftypes.NewError(mftypes.ErrKindVolumeIO, "test", nil)
			}
			return newFixtureReader(), nil
		},
		Detector: fakeDetector{kind: mftypes.DiskKindHDD},
	}

	results := c.RunAll(context.Background(), []byte{'C', 'D'})
	require.NoError(t, results['C'])
	require.Error(t, results['D'])
}

func TestPurgeRemovesStaleArtifactsOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "C_index.fst")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, mftypes.WriteVersionFile(filepath.Join(dir, "version.txt"), 999))

	cfg := &config.Config{ArtifactsRoot: dir, FormatVersion: mftypes.CurrentFormatVersion}
	c := &Coordinator{Cfg: cfg, Detector: fakeDetector{kind: mftypes.DiskKindHDD}}

	require.NoError(t, c.purgeIfFormatVersionChanged("test"))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))

	v, err := mftypes.ReadVersionFile(filepath.Join(dir, "version.txt"))
	require.NoError(t, err)
	require.Equal(t, uint64(mftypes.CurrentFormatVersion), v)
}
