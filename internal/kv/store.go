// Package kv provides the in-process key/value engine backing the
// scheduler sorted sets and the lease lock manager.
package kv

import "time"

// ScoredMember is one (member, score) pair from a sorted set. Scores
// are integer milliseconds since epoch throughout this codebase.
type ScoredMember struct {
	Member string
	Score  int64
}

// Store is the plain key/value surface.
type Store interface {
	Get(key string) (string, bool)
	// Set stores value; ttl <= 0 means no expiry.
	Set(key, value string, ttl time.Duration)
	// SetNX stores value only if key is absent; reports whether it was set.
	SetNX(key, value string, ttl time.Duration) bool
	Del(key string) bool
	// CompareAndDelete removes key only if it still holds expect.
	CompareAndDelete(key, expect string) bool
	Exists(key string) bool
	Incr(key string, delta int64) int64
	Expire(key string, ttl time.Duration) bool

	HSet(key, field, value string)
	HGet(key, field string) (string, bool)
	HGetAll(key string) map[string]string
	HIncr(key, field string, delta int64) int64
}

// SortedSet is the scored-member surface used by the scheduler.
type SortedSet interface {
	// ZAdd upserts member with score; reports whether it was newly added.
	ZAdd(key string, score int64, member string) bool
	ZRem(key string, members ...string) int
	// ZRangeByScore returns members with min <= score <= max in score order.
	// limit <= 0 means unbounded.
	ZRangeByScore(key string, min, max int64, limit int) []ScoredMember
	// ZPopMin atomically removes and returns the lowest-scored member.
	ZPopMin(key string) (ScoredMember, bool)
	ZCard(key string) int
	ZScore(key string, member string) (int64, bool)
	ZRemRangeByScore(key string, min, max int64) int
}
