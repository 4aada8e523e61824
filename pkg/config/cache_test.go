package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	c := new(cache)

	assert.Nil(t, c.cache, "cache starts empty")

	c.initCache()
	assert.NotNil(t, c.cache, "initCache() initializes")
	assert.Empty(t, c.cache, "... to empty")

	v, ok := c.CacheGet("key")
	assert.Nil(t, v, "non-existent key is nil")
	assert.False(t, ok, "non-existent key is non-existent")

	c.CacheSet("key", "value")
	v, ok = c.CacheGet("key")
	assert.Equal(t, "value", v, "existent key is correct")
	assert.True(t, ok, "existent key is existent")

	c.CacheSet("key", "value2")
	v, ok = c.CacheGet("key")
	assert.Equal(t, "value2", v, "replacing key works")
	assert.True(t, ok, "replacing key exists")

	c.CacheClear("key")
	v, ok = c.CacheGet("key")
	assert.Nil(t, v, "deleting key is gone")
	assert.False(t, ok, "deleted key does not exist")
}

func TestCacheLazyInitAndReset(t *testing.T) {
	type userKeys struct{}

	c := new(cache)
	v, ok := c.CacheGet(userKeys{})
	assert.Nil(t, v, "uninitialized cache reads as empty")
	assert.False(t, ok, "uninitialized cache has nothing")

	c.CacheSet(userKeys{}, []string{"a", "b"})
	v, ok = c.CacheGet(userKeys{})
	assert.True(t, ok, "set works without initCache()")
	assert.Equal(t, []string{"a", "b"}, v, "struct keys work")

	c.CacheReset()
	_, ok = c.CacheGet(userKeys{})
	assert.False(t, ok, "reset forgets everything")
}
