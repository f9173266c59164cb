package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplayDigestKeying(t *testing.T) {
	// Keyed on sender and timestamp only: the payload body does not
	// participate, and distinct senders or timestamps never collide.
	require.Equal(t, ReplayDigest("cam-1", 1700000000), ReplayDigest("cam-1", 1700000000))
	require.NotEqual(t, ReplayDigest("cam-1", 1700000000), ReplayDigest("cam-2", 1700000000))
	require.NotEqual(t, ReplayDigest("cam-1", 1700000000), ReplayDigest("cam-1", 1700000001))
}

func TestReplayCacheSeenAndRecord(t *testing.T) {
	cache := NewReplayCache()
	digest := ReplayDigest("cam-1", 1700000000)

	require.False(t, cache.Seen(digest))
	cache.Record(digest, time.Now())
	require.True(t, cache.Seen(digest))
	require.Equal(t, 1, cache.Len())
}

func TestReplayCacheReserve(t *testing.T) {
	cache := NewReplayCache()
	digest := ReplayDigest("cam-1", 1700000000)

	require.True(t, cache.Reserve(digest, time.Now()))
	require.False(t, cache.Reserve(digest, time.Now()))
}

func TestReplayCacheSweep(t *testing.T) {
	cache := NewReplayCache()
	cache.Record("old", time.Now().Add(-2*time.Hour))
	cache.Record("fresh", time.Now())

	cache.Sweep(time.Hour)

	require.False(t, cache.Seen("old"))
	require.True(t, cache.Seen("fresh"))
	require.Equal(t, 1, cache.Len())
}

func TestReplayCacheConcurrentReserve(t *testing.T) {
	cache := NewReplayCache()
	digest := ReplayDigest("cam-1", 1700000000)

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.Reserve(digest, time.Now()) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	// Exactly one goroutine may win the reservation.
	require.Len(t, wins, 1)
}

func TestReplayCacheSweepKeepsConcurrentInserts(t *testing.T) {
	cache := NewReplayCache()
	for i := 0; i < 256; i++ {
		cache.Record(ReplayDigest("old", int64(i)), time.Now().Add(-2*time.Hour))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cache.Sweep(time.Hour)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 256; i++ {
			cache.Record(ReplayDigest("new", int64(i)), time.Now())
		}
	}()
	wg.Wait()

	cache.Sweep(time.Hour)
	for i := 0; i < 256; i++ {
		require.True(t, cache.Seen(ReplayDigest("new", int64(i))))
	}
}
