package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// ReplayDigest derives the replay-cache key for a message: the hex
// sha-256 of the sender id concatenated with the payload timestamp.
//
// The digest is deliberately keyed on (sender, timestamp) only, not the
// payload body: two distinct payloads from one sender in the same second
// collide and the second is treated as a replay. Wire compatibility
// preserves this narrow keying; senders avoid the collision by never
// reusing a timestamp (see transport.SecureChannel).
func ReplayDigest(senderID string, timestamp int64) string {
	sum := sha256.Sum256([]byte(senderID + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(sum[:])
}

// ReplayCache is the bounded, time-windowed set of previously accepted
// message digests. A digest present in the cache unconditionally rejects
// any later message producing the same digest. One lock guards all three
// operations since verification runs from many connections concurrently.
type ReplayCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewReplayCache creates an empty cache.
func NewReplayCache() *ReplayCache {
	return &ReplayCache{entries: make(map[string]time.Time)}
}

// Seen reports whether digest has already been accepted.
func (c *ReplayCache) Seen(digest string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[digest]
	return ok
}

// Record unconditionally stores digest with its first-seen time.
func (c *ReplayCache) Record(digest string, firstSeen time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[digest] = firstSeen
}

// Reserve atomically records digest unless it is already present.
// The verifier reserves the slot before signature work so a concurrent
// duplicate cannot slip past the replay check while verification of the
// first copy is still in flight.
func (c *ReplayCache) Reserve(digest string, firstSeen time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[digest]; ok {
		return false
	}
	c.entries[digest] = firstSeen
	return true
}

// Sweep removes every entry at least horizon old, bounding memory growth.
// Entries are snapshot-filtered into a fresh map so inserts racing with a
// sweep are never lost.
func (c *ReplayCache) Sweep(horizon time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make(map[string]time.Time, len(c.entries))
	for digest, firstSeen := range c.entries {
		if now.Sub(firstSeen) < horizon {
			kept[digest] = firstSeen
		}
	}
	c.entries = kept
}

// Len returns the number of cached digests.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunSweeper sweeps on a fixed interval until ctx is cancelled. This is
// the backstop for quiet periods; verification traffic also sweeps
// opportunistically.
func (c *ReplayCache) RunSweeper(ctx context.Context, interval, horizon time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := c.Len()
			c.Sweep(horizon)
			if removed := before - c.Len(); removed > 0 {
				log.Debug("replay cache swept", "removed", removed, "remaining", c.Len())
			}
		}
	}
}
