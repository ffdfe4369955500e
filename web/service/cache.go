package service

import (
	"fmt"

	"x-sub/config"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	UserID int64
	Format Format
}

// CachedConfig 缓存条目，写入后不再修改，替换时整体换掉
type CachedConfig struct {
	Fingerprint uint64
	GroupID     int64
	Document    *ConfigDocument
}

// SubscriptionCache 以 (用户, 格式) 为键的并发 LRU，同键并发渲染经 singleflight 合并
type SubscriptionCache struct {
	entries *lru.Cache[cacheKey, *CachedConfig]
	flight  singleflight.Group
}

func NewSubscriptionCache() (*SubscriptionCache, error) {
	size := config.GetSubscriptionCacheSize()
	if size <= 0 {
		size = 4096
	}
	entries, err := lru.New[cacheKey, *CachedConfig](size)
	if err != nil {
		return nil, err
	}
	return &SubscriptionCache{entries: entries}, nil
}

func (c *SubscriptionCache) Get(userID int64, format Format) (*CachedConfig, bool) {
	return c.entries.Get(cacheKey{UserID: userID, Format: format})
}

func (c *SubscriptionCache) Put(userID int64, format Format, entry *CachedConfig) {
	c.entries.Add(cacheKey{UserID: userID, Format: format}, entry)
}

// Do 合并同一 (用户, 格式, 指纹) 的并发渲染
func (c *SubscriptionCache) Do(userID int64, format Format, fp uint64, fn func() (*ConfigDocument, error)) (*ConfigDocument, error) {
	key := fmt.Sprintf("%d/%s/%x", userID, format, fp)
	v, err, _ := c.flight.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*ConfigDocument), nil
}

func (c *SubscriptionCache) InvalidateUser(userID int64) {
	for _, f := range Formats {
		c.entries.Remove(cacheKey{UserID: userID, Format: f})
	}
}

func (c *SubscriptionCache) InvalidateUsers(userIDs []int64) {
	for _, id := range userIDs {
		c.InvalidateUser(id)
	}
}

// InvalidateGroup 删除属于某节点组的全部条目
func (c *SubscriptionCache) InvalidateGroup(groupID int64) {
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok && e.GroupID == groupID {
			c.entries.Remove(k)
		}
	}
}

func (c *SubscriptionCache) InvalidateGroups(groupIDs []int64) {
	for _, id := range groupIDs {
		c.InvalidateGroup(id)
	}
}

func (c *SubscriptionCache) Purge() {
	c.entries.Purge()
}

func (c *SubscriptionCache) Len() int {
	return c.entries.Len()
}
