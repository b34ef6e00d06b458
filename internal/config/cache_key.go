package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ModuleContentKey returns the cache key for a module's question content
func (r *CacheKeyStruct) ModuleContentKey(moduleID string) string {
	return fmt.Sprintf("module:%s:content", moduleID)
}

// EngineLeaseKey returns the key guarding the single live engine of a session
func (r *CacheKeyStruct) EngineLeaseKey(sessionUID string) string {
	return fmt.Sprintf("session:%s:engine_lease", sessionUID)
}

// TestSummaryKey returns the cache key for a test's time summary
func (r *CacheKeyStruct) TestSummaryKey(testID string) string {
	return fmt.Sprintf("test:%s:time_summary", testID)
}

// TestMonitorChannel returns the Pub/Sub channel for a test's session events
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
