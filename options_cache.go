package redux

import "sync"

// ProgramCache stores compiled selector expressions keyed by source text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *proxyConfig) {
		cfg.programCache = cache
	}
}

// MapProgramCache is an unbounded, concurrency-safe ProgramCache.
type MapProgramCache struct {
	programs sync.Map
}

// NewMapProgramCache constructs an empty cache.
func NewMapProgramCache() *MapProgramCache {
	return &MapProgramCache{}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *MapProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
