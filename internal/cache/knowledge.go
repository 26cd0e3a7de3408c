package cache

import (
	"sort"
	"sync"
)

// Knowledge is the team's shared research cache. Safe for concurrent use.
type Knowledge struct {
	mu      sync.RWMutex
	entries map[string]any
}

func NewKnowledge() *Knowledge {
	return &Knowledge{entries: make(map[string]any)}
}

func (k *Knowledge) Store(key string, value any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[key] = value
}

func (k *Knowledge) Retrieve(key string) (any, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.entries[key]
	return v, ok
}

func (k *Knowledge) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

func (k *Knowledge) Keys() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keys := make([]string, 0, len(k.entries))
	for key := range k.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
