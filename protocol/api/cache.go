package api

import (
	"fmt"
	"os"
	"time"

	"github.com/colinkho/media-sub001/format"
	"github.com/patrickmn/go-cache"
)

// ReportCache keeps probe reports keyed by path, size and modification time
// so a rewritten file is probed again
type ReportCache struct {
	localCache *cache.Cache
}

// NewReportCache returns a ReportCache whose entries live for ttl
func NewReportCache(ttl time.Duration) *ReportCache {
	return &ReportCache{
		localCache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
}

// Get returns the cached report of the file
func (c *ReportCache) Get(path string, info os.FileInfo) (*format.Report, bool) {
	v, found := c.localCache.Get(cacheKey(path, info))
	if !found {
		return nil, false
	}
	return v.(*format.Report), true
}

// Set caches the report of the file
func (c *ReportCache) Set(path string, info os.FileInfo, report *format.Report) {
	c.localCache.SetDefault(cacheKey(path, info), report)
}

// Len returns the number of cached reports
func (c *ReportCache) Len() int {
	return c.localCache.ItemCount()
}
