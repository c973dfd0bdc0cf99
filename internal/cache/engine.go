package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/halsted/mftsearch/internal/config"
	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/ifaces"
	"github.com/halsted/mftsearch/internal/merger"
	"github.com/halsted/mftsearch/internal/mftypes"
	"github.com/halsted/mftsearch/internal/pathstream"
	"github.com/halsted/mftsearch/internal/scancoord"
	"github.com/halsted/mftsearch/internal/updater"
	"github.com/halsted/mftsearch/internal/volume"
)

var _ ifaces.Engine = (*Engine)(nil)

// Engine is the core API surface (ifaces.Engine) external collaborators
// embed: it owns the query cache/router plus the bulk-scan coordinator
// and the per-drive updater/merger goroutines it starts on request.
type Engine struct {
	cfg         *config.Config
	cache       *Cache
	coordinator *scancoord.Coordinator

	mu       sync.Mutex
	monitors map[byte]context.CancelFunc
	mergers  map[byte]context.CancelFunc
}

// NewEngine wires a Cache, DiskOpener, and scan coordinator from cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		cfg:         cfg,
		cache:       New(cfg.ArtifactsRoot, DiskOpener{ArtifactsRoot: cfg.ArtifactsRoot}),
		coordinator: scancoord.New(cfg),
		monitors:    make(map[byte]context.CancelFunc),
		mergers:     make(map[byte]context.CancelFunc),
	}
}

// Search fans a query out across every present volume via the cache.
func (e *Engine) Search(ctx context.Context, q string, limit int) ([]mftypes.SearchHit, error) {
	return e.cache.Search(ctx, q, limit)
}

// Warmup pre-opens the given drives' query handles.
func (e *Engine) Warmup(drives []byte) {
	e.cache.Warmup(drives)
}

// RebuildAll enumerates every fixed NTFS volume and runs the bulk-scan
// pipeline across all of them. background=false blocks until every
// volume's scan has been attempted; background=true returns immediately
// and logs the outcome.
func (e *Engine) RebuildAll(ctx context.Context, background bool) error {
	letters := volume.EnumerateFixedDrives()

	run := func() error {
		results := e.coordinator.RunAll(ctx, letters)
		var firstErr error
		for letter, err := range results {
			if err == nil {
				continue
			}
			log.Printf("engine: rebuild of drive %c failed: %v", letter, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	if background {
		go func() {
			if err := run(); err != nil {
				log.Printf("engine: background rebuild finished with errors: %v", err)
			}
		}()
		return nil
	}
	return run()
}

// StartMonitoring spawns the USN incremental updater (C6) for drive,
// running until ctx is canceled, Stop is called, or a later
// StartMonitoring for the same drive replaces it. The updater's FRN map starts empty: reconstructing it from
// disk alone on process restart is an accepted limitation (see
// DESIGN.md), so ascent is only complete for entries the updater itself
// observes after startup.
func (e *Engine) StartMonitoring(ctx context.Context, drive byte) error {
	reader, err := scancoord.DefaultVolumeOpener(drive)
	if err != nil {
		return err
	}

	ap := mftypes.ArtifactPaths{Root: e.cfg.ArtifactsRoot, Letter: drive}
	ignore := pathstream.NewIgnoreFilter(e.cfg.AllIgnorePatterns())
	pollInterval := time.Duration(e.cfg.UpdaterPollIntervalMillis) * time.Millisecond

	u, err := updater.Open(reader, ap, frnmap.New(0), ignore, pollInterval, e.cfg.DeltaFlushGramThreshold)
	if err != nil {
		reader.Close()
		return err
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if old, ok := e.monitors[drive]; ok {
		old()
	}
	e.monitors[drive] = cancel
	e.mu.Unlock()

	go func() {
		defer reader.Close()
		defer u.Close()
		if err := u.Run(monitorCtx); err != nil && monitorCtx.Err() == nil {
			log.Printf("engine: monitoring of drive %c ended: %v", drive, err)
		}
	}()
	return nil
}

// StartMerger spawns the delta merger (C7) for drive.
func (e *Engine) StartMerger(ctx context.Context, drive byte) error {
	ap := mftypes.ArtifactPaths{Root: e.cfg.ArtifactsRoot, Letter: drive}
	interval := time.Duration(e.cfg.MergeIntervalSeconds) * time.Second
	m := merger.New(ap, e.cfg.MergeThresholdMB, interval)

	mergeCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if old, ok := e.mergers[drive]; ok {
		old()
	}
	e.mergers[drive] = cancel
	e.mu.Unlock()

	go func() {
		if err := m.Run(mergeCtx); err != nil && mergeCtx.Err() == nil {
			log.Printf("engine: merger of drive %c ended: %v", drive, err)
		}
	}()
	return nil
}

// Stop cancels every running monitor and merger goroutine and closes the
// query cache.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, cancel := range e.monitors {
		cancel()
	}
	for _, cancel := range e.mergers {
		cancel()
	}
	e.monitors = make(map[byte]context.CancelFunc)
	e.mergers = make(map[byte]context.CancelFunc)
	e.mu.Unlock()

	if err := e.cache.Close(); err != nil {
		log.Printf("engine: error closing cache: %v", err)
	}
}
