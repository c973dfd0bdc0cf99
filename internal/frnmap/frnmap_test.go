package frnmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halsted/mftsearch/internal/mftypes"
)

func TestInsertAndLookup(t *testing.T) {
	m := New(0)
	m.Insert(10, 5, "chrome.exe")

	parent, name, ok := m.Lookup(10)
	require.True(t, ok)
	require.Equal(t, mftypes.FRN(5), parent)
	require.Equal(t, "chrome.exe", name)
}

func TestDuplicateFRNLastWriteWins(t *testing.T) {
	m := New(0)
	m.Insert(10, 5, "old-name.txt")
	m.Insert(10, 6, "new-name.txt")

	parent, name, ok := m.Lookup(10)
	require.True(t, ok)
	require.Equal(t, mftypes.FRN(6), parent)
	require.Equal(t, "new-name.txt", name)
}

func TestRemove(t *testing.T) {
	m := New(0)
	m.Insert(10, 5, "chrome.exe")
	m.Remove(10)

	_, _, ok := m.Lookup(10)
	require.False(t, ok)
}

func TestLookupMissingFRN(t *testing.T) {
	m := New(0)
	_, _, ok := m.Lookup(999)
	require.False(t, ok)
}

func TestChecksumStable(t *testing.T) {
	m := New(0)
	m.Insert(1, mftypes.RootFRN, "abc")
	sum, ok := m.Checksum(1)
	require.True(t, ok)
	require.Equal(t, int32('a'+'b'+'c'), sum)
}
