// Package pathstream implements the path streamer (C3): reconstructing
// absolute paths by ascending FRN chains, filtering ignored paths, and
// emitting surviving paths to an append-only length-prefixed file.
package pathstream

import (
	"strings"

	"github.com/halsted/mftsearch/internal/frnmap"
	"github.com/halsted/mftsearch/internal/mftypes"
)

// prefixCacheMaxEntries bounds the shallow-ascent prefix cache; it holds
// only shallow-depth results, so a modest cap is enough to accelerate
// repeated ascents through common ancestors (e.g. every file under the same
// directory).
const prefixCacheMaxEntries = 4096

// prefixCacheMaxDepth is the deepest ascent result eligible for caching.
const prefixCacheMaxDepth = 4

// PrefixCache is a small, bounded, FIFO-evicted cache of recent path
// prefixes keyed on FRN.
type PrefixCache struct {
	entries map[mftypes.FRN]string
	order   []mftypes.FRN
}

// NewPrefixCache creates an empty prefix cache.
func NewPrefixCache() *PrefixCache {
	return &PrefixCache{entries: make(map[mftypes.FRN]string, prefixCacheMaxEntries)}
}

func (c *PrefixCache) get(frn mftypes.FRN) (string, bool) {
	v, ok := c.entries[frn]
	return v, ok
}

func (c *PrefixCache) put(frn mftypes.FRN, prefix string) {
	if _, exists := c.entries[frn]; exists {
		c.entries[frn] = prefix
		return
	}
	if len(c.order) >= prefixCacheMaxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[frn] = prefix
	c.order = append(c.order, frn)
}

// Ascend reconstructs the absolute path for frn by walking parent links up
// to mftypes.MaxPathAscentDepth. Root-directory FRNs (mftypes.RootFRN) and
// FRN zero terminate ascent, as does any ancestor FRN missing from m — in
// that case the partial result built so far is still returned, since the
// system tolerates mildly incomplete paths better than dropping the entry
// outright.
func Ascend(m *frnmap.Map, cache *PrefixCache, driveLetter byte, frn mftypes.FRN) string {
	var components []string
	current := frn
	depth := 0

	for depth < mftypes.MaxPathAscentDepth {
		if current == mftypes.RootFRN || current == mftypes.ZeroFRN {
			break
		}
		if cached, ok := cache.get(current); ok {
			components = append(components, cached)
			break
		}

		parent, name, ok := m.Lookup(current)
		if !ok {
			break
		}
		components = append(components, name)
		current = parent
		depth++
	}

	// components were collected leaf-first; reverse to root-first.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}

	joined := strings.Join(components, `\`)
	path := string(driveLetter) + `:\` + joined

	if depth <= prefixCacheMaxDepth && joined != "" {
		cache.put(frn, joined)
	}

	return path
}

// IgnoreFilter decides whether a reconstructed path should be excluded from
// the index.
type IgnoreFilter struct {
	patterns []string
}

// NewIgnoreFilter builds a filter from a set of lowercase substrings, in
// addition to the built-in "$" metadata-marker rule.
func NewIgnoreFilter(patterns []string) *IgnoreFilter {
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &IgnoreFilter{patterns: lowered}
}

// ShouldIgnore reports whether path (in its original case) should be
// excluded: paths containing a "$" metadata marker, or whose lowercased
// form contains any configured pattern.
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if strings.Contains(path, "$") {
		return true
	}
	lower := strings.ToLower(path)
	for _, pattern := range f.patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
