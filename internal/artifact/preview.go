package artifact

import (
	"github.com/charmbracelet/log"
)

// PreviewCache maps voice ids to preview clips. It is owned by the
// interactive loop and is not safe for concurrent use.
type PreviewCache struct {
	store   *Store
	entries map[string]Artifact
}

// NewPreviewCache creates an empty cache over store's preview directory.
func NewPreviewCache(store *Store) *PreviewCache {
	return &PreviewCache{
		store:   store,
		entries: make(map[string]Artifact),
	}
}

// Lookup returns a playable preview for voice. A cached entry whose file has
// gone missing or become unplayable is evicted; on a miss, a valid clip left
// on disk by an earlier session is adopted.
func (c *PreviewCache) Lookup(voice string) (Artifact, bool) {
	if a, ok := c.entries[voice]; ok {
		fresh, err := Inspect(a.Path)
		if err == nil {
			c.entries[voice] = fresh
			return fresh, true
		}
		log.Debug("evicting preview", "voice", voice, "err", err)
		delete(c.entries, voice)
	}

	path, err := c.store.PreviewPath(voice)
	if err != nil {
		return Artifact{}, false
	}
	a, err := Inspect(path)
	if err != nil {
		return Artifact{}, false
	}
	log.Debug("adopted preview from disk", "voice", voice, "path", path)
	c.entries[voice] = a
	return a, true
}

// Put records a freshly generated preview.
func (c *PreviewCache) Put(voice string, a Artifact) {
	c.entries[voice] = a
}

// Invalidate drops the entry for voice, if any.
func (c *PreviewCache) Invalidate(voice string) {
	delete(c.entries, voice)
}

// Len returns the number of cached entries.
func (c *PreviewCache) Len() int {
	return len(c.entries)
}
