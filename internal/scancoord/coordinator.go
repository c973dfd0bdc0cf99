package scancoord

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/halsted/mftsearch/internal/config"
	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/gramindex"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathstream"
	"github.com/halsted/mftsearch/internal/volume"
)

// VolumeOpener opens the volume reader for one drive letter. Production
// code is backed by DefaultVolumeOpener; tests substitute a fake so the
// pipeline can run off Windows.
type VolumeOpener func(letter byte) (volume.Reader, error)

// DefaultVolumeOpener opens the platform's real volume reader.
func DefaultVolumeOpener(letter byte) (volume.Reader, error) {
	return volume.Open(letter)
}

// Coordinator owns the policy and dependencies of a bulk-scan run: which
// disk-kind detector to trust, which volume opener to use, and the
// artifact root every volume's pipeline writes under.
type Coordinator struct {
	Cfg      *config.Config
	Opener   VolumeOpener
	Detector DiskKindDetector
}

// New builds a Coordinator wired to the real volume reader and the
// platform's disk-kind detector.
func New(cfg *config.Config) *Coordinator {
	return &Coordinator{
		Cfg:      cfg,
		Opener:   DefaultVolumeOpener,
		Detector: defaultDetector(),
	}
}

func defaultDetector() DiskKindDetector {
	return platformDetector{}
}

// artifactsRootDir is a package-local reference so
// purgeIfFormatVersionChanged, scanVolume, and RunAll agree on the
// directory.
func (c *Coordinator) artifactsRootDir() string { return c.Cfg.ArtifactsRoot }

// RunAll classifies every drive letter in letters, purges stale artifacts
// on a format-version mismatch, then runs the bulk-scan pipeline for each
// volume: SSD volumes in parallel, HDD volumes strictly serially
// afterward. A failure on one volume is logged and recorded in the
// returned map; it never aborts the others.
func (c *Coordinator) RunAll(ctx context.Context, letters []byte) map[byte]error {
	runID := uuid.New()
	log.Printf("scancoord[%s]: starting bulk scan of %d volume(s)", runID, len(letters))

	if err := os.MkdirAll(c.artifactsRootDir(), 0o755); err != nil {
		log.Printf("scancoord[%s]: could not create artifacts root: %v", runID, err)
		results := make(map[byte]error, len(letters))
		for _, l := range letters {
			results[l] = mftypes.NewError(mftypes.ErrKindBuildFailure, "scancoord.RunAll", err)
		}
		return results
	}

	if err := c.purgeIfFormatVersionChanged(runID.String()); err != nil {
		log.Printf("scancoord[%s]: purge check failed: %v", runID, err)
	}

	var ssd, hdd []byte
	for _, l := range letters {
		if c.Detector.DetectDiskKind(l) == mftypes.DiskKindSSD {
			ssd = append(ssd, l)
		} else {
			hdd = append(hdd, l)
		}
	}

	results := make(map[byte]error, len(letters))
	var mu sync.Mutex

	var wg sync.WaitGroup
	for _, letter := range ssd {
		wg.Add(1)
		go func(letter byte) {
			defer wg.Done()
			err := c.scanVolume(ctx, letter, runID.String())
			mu.Lock()
			results[letter] = err
			mu.Unlock()
			if err != nil {
				log.Printf("scancoord[%s]: ssd volume %c: scan failed: %v", runID, letter, err)
			} else {
				log.Printf("scancoord[%s]: ssd volume %c: scan complete", runID, letter)
			}
		}(letter)
	}
	wg.Wait()

	for _, letter := range hdd {
		err := c.scanVolume(ctx, letter, runID.String())
		results[letter] = err
		if err != nil {
			log.Printf("scancoord[%s]: hdd volume %c: scan failed: %v", runID, letter, err)
		} else {
			log.Printf("scancoord[%s]: hdd volume %c: scan complete", runID, letter)
		}
	}

	return results
}

// purgeIfFormatVersionChanged removes every per-drive artifact under the
// artifacts root when the on-disk format-version marker is absent or
// differs from the compiled version, then rewrites the marker.
func (c *Coordinator) purgeIfFormatVersionChanged(runTag string) error {
	root := c.artifactsRootDir()
	marker := filepath.Join(root, "version.txt")

	onDisk, err := mftypes.ReadVersionFile(marker)
	if err == nil && onDisk == uint64(c.Cfg.FormatVersion) {
		return nil
	}

	log.Printf("scancoord[%s]: format version mismatch (on-disk %d, compiled %d); purging artifacts", runTag, onDisk, c.Cfg.FormatVersion)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return mftypes.WriteVersionFile(marker, uint64(c.Cfg.FormatVersion))
		}
		return mftypes.NewError(mftypes.ErrKindBuildFailure, "scancoord.purgeIfFormatVersionChanged", err)
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".dat"), strings.HasSuffix(name, ".fst"),
			strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".tmp"),
			strings.HasSuffix(name, ".new"), strings.HasSuffix(name, ".version"):
			_ = os.Remove(filepath.Join(root, name))
		}
	}

	return mftypes.WriteVersionFile(marker, uint64(c.Cfg.FormatVersion))
}

// scanVolume runs the C1->C2->C3->C4 pipeline for one volume: enumerate
// every MFT record into an FRN map, ascend every entry into a path,
// filter and stream surviving paths to disk, then build the gram index
// from the streamed paths file.
func (c *Coordinator) scanVolume(ctx context.Context, letter byte, runTag string) error {
	paths := mftypes.ArtifactPaths{Root: c.artifactsRootDir(), Letter: letter}

	reader, err := c.Opener(letter)
	if err != nil {
		return err
	}
	defer reader.Close()

	jd, err := reader.QueryJournal()
	if err != nil {
		return err
	}

	m := frnmap.New(frnmap.EstimatedSystemDriveEntries)

	var startFRN uint64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		nextFRN, records, eof, err := reader.EnumerateRecords(startFRN, jd.NextUSN)
		if err != nil {
			return err
		}
		for _, rec := range records {
			m.IngestRecord(rec)
		}
		if eof {
			break
		}
		startFRN = nextFRN
	}
	log.Printf("scancoord[%s]: volume %c: enumerated %d records", runTag, letter, m.Len())

	writer, err := pathstream.NewWriter(paths)
	if err != nil {
		return err
	}

	ignore := pathstream.NewIgnoreFilter(c.Cfg.AllIgnorePatterns())
	cache := pathstream.NewPrefixCache()

	var writeErr error
	m.Each(func(frn, _ mftypes.FRN, _ string) {
		if writeErr != nil {
			return
		}
		path := pathstream.Ascend(m, cache, letter, frn)
		if ignore.ShouldIgnore(path) {
			return
		}
		if _, err := writer.Write(path); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		writer.Abort()
		return writeErr
	}
	if err := writer.Finalize(); err != nil {
		return err
	}
	log.Printf("scancoord[%s]: volume %c: streamed %d paths", runTag, letter, writer.Count())

	builder := gramindex.NewBuilder()
	count, err := gramindex.BuildFromPathsFile(builder, paths.Paths())
	if err != nil {
		return err
	}
	if err := builder.Finalize(paths); err != nil {
		return err
	}
	if err := mftypes.WriteVersionFile(paths.IndexVersion(), 1); err != nil {
		return err
	}
	log.Printf("scancoord[%s]: volume %c: built gram index for %d paths", runTag, letter, count)

	return nil
}
