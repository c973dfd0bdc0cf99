package mftypes

import "path/filepath"

// ArtifactPaths resolves the on-disk filenames for one volume's artifacts,
// all relative to a shared artifacts root directory. Every filename is
// prefixed with the volume letter, per the layout documented in the core
// API's on-disk file layout.
type ArtifactPaths struct {
	Root   string
	Letter byte
}

func (a ArtifactPaths) prefixed(suffix string) string {
	return filepath.Join(a.Root, string(a.Letter)+suffix)
}

func (a ArtifactPaths) VersionMarker() string { return filepath.Join(a.Root, "version.txt") }
func (a ArtifactPaths) Paths() string         { return a.prefixed("_paths.dat") }
func (a ArtifactPaths) PathsTmp() string      { return a.prefixed("_paths.tmp") }
func (a ArtifactPaths) Offsets() string       { return a.prefixed("_offsets.dat") }
func (a ArtifactPaths) FST() string           { return a.prefixed("_index.fst") }
func (a ArtifactPaths) FSTNew() string        { return a.prefixed("_index.fst.new") }
func (a ArtifactPaths) Bitmaps() string       { return a.prefixed("_bitmaps.dat") }
func (a ArtifactPaths) BitmapsNew() string    { return a.prefixed("_bitmaps.dat.new") }
func (a ArtifactPaths) Delta() string         { return a.prefixed("_index_delta.dat") }
func (a ArtifactPaths) IndexVersion() string  { return a.prefixed("_index.version") }

// PrimaryArtifactsPresent reports whether the FST, bitmaps, paths, and
// offsets files for this volume all exist, which is what the cross-volume
// router uses to enumerate
// present drives (A-Z).
func (a ArtifactPaths) PrimaryArtifactsPresent(exists func(string) bool) bool {
	return exists(a.FST()) && exists(a.Bitmaps()) && exists(a.Paths()) && exists(a.Offsets())
}
