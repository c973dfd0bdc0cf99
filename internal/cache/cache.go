// Package cache implements the query cache & router (C10): a process-wide
// cache of open per-drive query handles with version-driven invalidation,
// and the cross-volume fan-out that merges and ranks results.
package cache

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/halsted/mftsearch/internal/ifaces"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathreader"
	"github.com/halsted/mftsearch/internal/query"
)

type handlePair struct {
	query      ifaces.QueryHandle
	pathReader ifaces.PathReaderHandle
}

// DiskOpener is the production ifaces.Opener, backed by query.Open and
// pathreader.Open against one artifacts root.
type DiskOpener struct {
	ArtifactsRoot string
}

func (o DiskOpener) Open(letter byte) (ifaces.QueryHandle, ifaces.PathReaderHandle, error) {
	ap := mftypes.ArtifactPaths{Root: o.ArtifactsRoot, Letter: letter}
	q, err := query.Open(ap)
	if err != nil {
		return nil, nil, err
	}
	pr, err := pathreader.Open(ap)
	if err != nil {
		q.Close()
		return nil, nil, err
	}
	return q, pr, nil
}

// Cache is the process-wide singleton keyed by drive letter. Every method
// is safe for concurrent use.
type Cache struct {
	artifactsRoot string
	opener        ifaces.Opener

	mu      sync.RWMutex
	entries map[byte]handlePair
}

// New builds an empty cache backed by opener; artifactsRoot is used only
// to enumerate which drive letters currently have a primary index.
func New(artifactsRoot string, opener ifaces.Opener) *Cache {
	return &Cache{artifactsRoot: artifactsRoot, opener: opener, entries: make(map[byte]handlePair)}
}

// PresentVolumes enumerates A-Z, returning every letter whose primary FST,
// bitmaps, paths, and offsets files all exist.
func (c *Cache) PresentVolumes() []byte {
	var present []byte
	for l := byte('A'); l <= 'Z'; l++ {
		ap := mftypes.ArtifactPaths{Root: c.artifactsRoot, Letter: l}
		if ap.PrimaryArtifactsPresent(fileExists) {
			present = append(present, l)
		}
	}
	return present
}

// get returns the cached handle pair for letter, opening or reopening it
// as needed: a read-locked check first, then an upgrade to a write lock
// with a second check, so two callers racing to open the same drive never
// both pay the open cost.
func (c *Cache) get(letter byte) (ifaces.QueryHandle, ifaces.PathReaderHandle, error) {
	c.mu.RLock()
	if e, ok := c.entries[letter]; ok && !e.query.NeedsReload() {
		c.mu.RUnlock()
		return e.query, e.pathReader, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[letter]; ok {
		if !e.query.NeedsReload() {
			return e.query, e.pathReader, nil
		}
		e.query.Close()
		e.pathReader.Close()
		delete(c.entries, letter)
	}

	q, pr, err := c.opener.Open(letter)
	if err != nil {
		return nil, nil, err
	}
	c.entries[letter] = handlePair{query: q, pathReader: pr}
	return q, pr, nil
}

// Warmup pre-opens every drive in drives, logging (rather than failing)
// any that cannot be opened, so one missing drive does not block the
// others from being ready before the first real query.
func (c *Cache) Warmup(drives []byte) {
	for _, d := range drives {
		if _, _, err := c.get(d); err != nil {
			log.Printf("cache: warmup of drive %c failed: %v", d, err)
		}
	}
}

// Search resolves query against every present volume, merging results.
// A single present volume is searched in-line; more than one fans out
// concurrently and concatenates results, matching the "storage stack
// already absorbs contention" routing policy.
func (c *Cache) Search(ctx context.Context, q string, limit int) ([]mftypes.SearchHit, error) {
	volumes := c.PresentVolumes()
	if len(volumes) == 0 {
		return nil, nil
	}
	if len(volumes) == 1 {
		return c.searchVolume(volumes[0], q, limit)
	}

	var (
		mu  sync.Mutex
		all []mftypes.SearchHit
		wg  sync.WaitGroup
	)
	for _, letter := range volumes {
		wg.Add(1)
		go func(letter byte) {
			defer wg.Done()
			hits, err := c.searchVolume(letter, q, limit)
			if err != nil {
				log.Printf("cache: search of drive %c failed: %v", letter, err)
				return
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
		}(letter)
	}
	wg.Wait()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (c *Cache) searchVolume(letter byte, q string, limit int) ([]mftypes.SearchHit, error) {
	handle, reader, err := c.get(letter)
	if err != nil {
		return nil, err
	}

	ids, err := handle.Search(q, limit)
	if err != nil {
		return nil, err
	}
	resolved := reader.GetMany(ids)

	hits := make([]mftypes.SearchHit, 0, len(ids))
	for _, id := range ids {
		path, ok := resolved[id]
		if !ok {
			continue
		}
		hits = append(hits, mftypes.SearchHit{
			Path:     path,
			Priority: mftypes.ClassifyPriority(strings.ToLower(path)),
			Drive:    letter,
			FileID:   id,
		})
	}
	return hits, nil
}

// Close releases every currently cached handle pair.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for letter, e := range c.entries {
		if err := e.query.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := e.pathReader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.entries, letter)
	}
	return firstErr
}
