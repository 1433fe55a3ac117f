package constants

import (
	"time"
)

// Redis Cache Configuration
// Pattern: boxoffice:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_SHORT = 30 * time.Second // 30 seconds - for live availability counts
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "boxoffice"
)

// ================== TICKETS MODULE ==================

// Ticket Cache Keys
const (
	CACHE_KEY_TICKET_AVAILABILITY = CACHE_PREFIX + ":tickets:availability:uuid:" // + ticket-type-id
)

// Ticket Cache TTLs
const (
	TTL_TICKET_AVAILABILITY = TTL_REALTIME_SHORT // 30 seconds
)

// ================== RATE LIMIT KEYS ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:" // + ip:type
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_TICKETS_ALL = CACHE_PREFIX + ":tickets:*"
)

// ================== HELPER FUNCTIONS ==================

// BuildTicketAvailabilityKey returns the availability cache key for a ticket type.
// Example: "boxoffice:tickets:availability:uuid:7b0c..."
func BuildTicketAvailabilityKey(ticketTypeID string) string {
	return CACHE_KEY_TICKET_AVAILABILITY + ticketTypeID
}
