package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU holds the most recent probabilities in process memory.
type LRU struct {
	cache *lru.Cache[string, float64]
}

func NewLRU(size int) (*LRU, error) {
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{cache: c}, nil
}

func (l *LRU) Get(_ context.Context, key string) (float64, bool) {
	return l.cache.Get(key)
}

func (l *LRU) Set(_ context.Context, key string, value float64) error {
	l.cache.Add(key, value)
	return nil
}

func (l *LRU) Purge(_ context.Context) error {
	l.cache.Purge()
	return nil
}

func (l *LRU) Len() int {
	return l.cache.Len()
}
