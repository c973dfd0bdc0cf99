// Package frnmap builds and queries the in-memory map from FRN to
// (parent-FRN, base-name) that both the bulk-scan path streamer and the
// incremental updater use to reconstruct absolute paths. The map is
// authoritative only for the lifetime of its owning goroutine; it is never
// persisted.
package frnmap

import (
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/volume"
)

// entry is the map's value: a ParentInfo plus the cheap ASCII checksum kept
// as a supplemental integrity spot-check (see SPEC_FULL.md's supplemented
// features), not exposed through the query API.
type entry struct {
	parent   mftypes.FRN
	name     string
	checksum int32
}

// Map is the hash table from FRN to (parent-FRN, base-name). It pre-sizes
// for millions of entries to avoid rehashing during a bulk scan.
type Map struct {
	entries map[mftypes.FRN]entry
}

// EstimatedSystemDriveEntries is a reasonable initial size hint for a
// typical system drive, avoiding repeated rehashing during bulk scan.
const EstimatedSystemDriveEntries = 2_500_000

// New creates an empty map pre-sized for sizeHint entries.
func New(sizeHint int) *Map {
	if sizeHint <= 0 {
		sizeHint = EstimatedSystemDriveEntries
	}
	return &Map{entries: make(map[mftypes.FRN]entry, sizeHint)}
}

// Len reports the number of distinct FRNs currently mapped.
func (m *Map) Len() int { return len(m.entries) }

// asciiSum is the supplemental checksum: the sum of a name's UTF-8 bytes.
func asciiSum(name string) int32 {
	var sum int32
	for i := 0; i < len(name); i++ {
		sum += int32(name[i])
	}
	return sum
}

// Insert records (or overwrites) the parent FRN and base name for frn.
// Duplicate FRNs may appear due to journal semantics; last write wins.
func (m *Map) Insert(frn, parentFRN mftypes.FRN, name string) {
	m.entries[frn] = entry{parent: parentFRN, name: name, checksum: asciiSum(name)}
}

// Remove deletes frn from the map, as the updater does on FILE_DELETE.
func (m *Map) Remove(frn mftypes.FRN) {
	delete(m.entries, frn)
}

// Lookup returns the parent FRN and base name recorded for frn.
func (m *Map) Lookup(frn mftypes.FRN) (parent mftypes.FRN, name string, ok bool) {
	e, found := m.entries[frn]
	if !found {
		return 0, "", false
	}
	return e.parent, e.name, true
}

// Checksum returns the stored ASCII checksum for frn, for verification
// re-reads.
func (m *Map) Checksum(frn mftypes.FRN) (int32, bool) {
	e, found := m.entries[frn]
	if !found {
		return 0, false
	}
	return e.checksum, true
}

// IngestRecord applies one decoded USN/MFT record to the map, terminating
// ascent-relevant bookkeeping is left to the path streamer; this only
// maintains the FRN -> (parent, name) association.
func (m *Map) IngestRecord(rec volume.DecodedRecord) {
	m.Insert(mftypes.FRN(rec.FRN), mftypes.FRN(rec.ParentFRN), rec.Name)
}

// Each calls fn once per (frn, parent, name) triple currently in the map.
// Iteration order is unspecified, matching Go map semantics.
func (m *Map) Each(fn func(frn, parent mftypes.FRN, name string)) {
	for frn, e := range m.entries {
		fn(frn, e.parent, e.name)
	}
}
