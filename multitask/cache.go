package multitask

import (
	"sync"

	"github.com/hupe1980/chemgo/model"
)

// ModelCache controls which fitted per-task models the router retains in
// memory. It is an explicit, injectable policy: the router consults the
// cache before rebuilding and reloading a model from its directory.
//
// Implementations must be safe for concurrent use; the router may fit tasks
// in parallel.
type ModelCache interface {
	Get(task string) (model.Model, bool)
	Put(task string, m model.Model)
}

// MemoryCache retains every fitted model, keyed by task id.
//
// Suitable when per-task models are cheap to hold (linear models, models
// whose weights live outside the Go heap).
type MemoryCache struct {
	mu     sync.RWMutex
	models map[string]model.Model
}

// NewMemoryCache creates an empty keep-all cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{models: make(map[string]model.Model)}
}

// Get returns the cached model for a task.
func (c *MemoryCache) Get(task string) (model.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[task]
	return m, ok
}

// Put stores the model for a task.
func (c *MemoryCache) Put(task string, m model.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[task] = m
}

// NoCache retains nothing: every prediction rebuilds the task model and
// reloads it from disk. This is the right policy when models are too large
// to keep resident.
type NoCache struct{}

// Get always misses.
func (NoCache) Get(string) (model.Model, bool) { return nil, false }

// Put discards the model.
func (NoCache) Put(string, model.Model) {}
