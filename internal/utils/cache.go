package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// TagCache is a read-path LRU cache whose entries can be dropped by tag
// (e.g. "station:12") when the underlying rows change.
type TagCache struct {
	lruCache *lru.Cache[string, CacheItem]
	ttl      time.Duration

	mu   sync.Mutex
	tags map[string]map[string]struct{} // tag -> keys
	now  func() time.Time
}

// NewTagCache creates a cache holding at most size entries for ttl each.
func NewTagCache(size int, ttl time.Duration) (*TagCache, error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &TagCache{
		lruCache: l,
		ttl:      ttl,
		tags:     make(map[string]map[string]struct{}),
		now:      time.Now,
	}, nil
}

// Set 设置缓存并关联标签
func (c *TagCache) Set(key string, data interface{}, tags ...string) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// Get 获取缓存，若不存在或已过期则返回 nil
func (c *TagCache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Delete 删除指定缓存
func (c *TagCache) Delete(key string) {
	c.lruCache.Remove(key)
}

// Invalidate drops every entry registered under any of the tags.
func (c *TagCache) Invalidate(tags ...string) {
	c.mu.Lock()
	var keys []string
	for _, tag := range tags {
		for key := range c.tags[tag] {
			keys = append(keys, key)
		}
		delete(c.tags, tag)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.lruCache.Remove(key)
	}
}
