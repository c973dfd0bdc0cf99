package pathstream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/mftypes"
)

func TestAscendBuildsFullPath(t *testing.T) {
	m := frnmap.New(0)
	m.Insert(100, mftypes.RootFRN, "Program Files")
	m.Insert(101, 100, "Chrome")
	m.Insert(102, 101, "chrome.exe")

	path := Ascend(m, NewPrefixCache(), 'C', 102)
	require.Equal(t, `C:\Program Files\Chrome\chrome.exe`, path)
}

func TestAscendStopsAtUnresolvedAncestorKeepingPartialPath(t *testing.T) {
	m := frnmap.New(0)
	// 200's parent (900) is never inserted.
	m.Insert(200, 900, "orphan.txt")

	path := Ascend(m, NewPrefixCache(), 'C', 200)
	require.Equal(t, `C:\orphan.txt`, path)
}

func TestAscendDepthCapPreventsInfiniteLoop(t *testing.T) {
	m := frnmap.New(0)
	// Build a cycle: 1 -> 2 -> 1 -> ...
	m.Insert(1, 2, "a")
	m.Insert(2, 1, "b")

	path := Ascend(m, NewPrefixCache(), 'C', 1)
	require.NotEmpty(t, path)
	require.Contains(t, path, `C:\`)
}

func TestIgnoreFilter(t *testing.T) {
	f := NewIgnoreFilter([]string{`\winsxs\`, `\temp\`})

	require.True(t, f.ShouldIgnore(`C:\Windows\WinSxS\foo.dll`))
	require.True(t, f.ShouldIgnore(`C:\$RECYCLE.BIN\file`)) // "$" marker
	require.False(t, f.ShouldIgnore(`C:\Users\a\file.txt`))
}

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ap := mftypes.ArtifactPaths{Root: dir, Letter: 'C'}

	w, err := NewWriter(ap)
	require.NoError(t, err)

	id0, err := w.Write(`C:\Program Files\Chrome\chrome.exe`)
	require.NoError(t, err)
	require.Equal(t, mftypes.FileID(0), id0)

	id1, err := w.Write(`C:\Users\x\chrome_notes.txt`)
	require.NoError(t, err)
	require.Equal(t, mftypes.FileID(1), id1)

	require.NoError(t, w.Finalize())

	data, err := os.ReadFile(filepath.Join(dir, "C_paths.dat"))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	priorities := w.Priorities()
	require.Len(t, priorities, 2)
	require.Greater(t, priorities[0], priorities[1])
}
