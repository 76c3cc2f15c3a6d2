package sources

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/keyscan"
)

// DefaultCacheSize bounds the number of decoded files a CachingSource retains.
const DefaultCacheSize = 256

// CachingSource memoizes decoded file contents of an underlying source.
// Only successful reads are cached; absence and failures always reach the
// underlying source.
type CachingSource struct {
	source audit.FileSource
	cache  *lru.Cache[string, string]
}

// NewCachingSource wraps source with an LRU cache holding up to size entries.
func NewCachingSource(source audit.FileSource, size int) (*CachingSource, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, cacheError := lru.New[string, string](size)
	if cacheError != nil {
		return nil, cacheError
	}
	return &CachingSource{source: source, cache: cache}, nil
}

// Exists answers from the cache when possible.
func (source *CachingSource) Exists(executionContext context.Context, reference keyscan.FileReference) bool {
	if source.cache.Contains(reference.String()) {
		return true
	}
	return source.source.Exists(executionContext, reference)
}

// ReadText returns cached content or reads through to the underlying source.
func (source *CachingSource) ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error) {
	cacheKey := reference.String()
	if content, cached := source.cache.Get(cacheKey); cached {
		return content, nil
	}
	content, readError := source.source.ReadText(executionContext, reference)
	if readError != nil {
		return "", readError
	}
	source.cache.Add(cacheKey, content)
	return content, nil
}

// Invalidate drops the cached content for reference.
func (source *CachingSource) Invalidate(reference keyscan.FileReference) {
	source.cache.Remove(reference.String())
}

// Purge drops every cached entry.
func (source *CachingSource) Purge() {
	source.cache.Purge()
}
