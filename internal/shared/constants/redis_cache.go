package constants

import "time"

// Redis cache keys and TTLs.
// Pattern: stagepass:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "stagepass"
)

// Event catalog (semi-static, invalidated on admin changes)
const (
	CACHE_KEY_EVENTS_LIST  = CACHE_PREFIX + ":events:list"
	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":events:detail:uuid:" // + event-id

	TTL_EVENT_LIST   = 5 * time.Minute
	TTL_EVENT_DETAIL = 15 * time.Minute
)

// Invalidation patterns
const (
	PATTERN_INVALIDATE_EVENTS_ALL = CACHE_PREFIX + ":events:*"
)

func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}
