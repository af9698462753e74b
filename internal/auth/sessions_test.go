package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndTouch(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)

	token, err := store.Create("mila", RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 1, store.Len())

	session, result := store.TouchAndCheck(token)
	assert.Equal(t, TouchValid, result)
	assert.Equal(t, "mila", session.Username)
	assert.Equal(t, RoleAdmin, session.Role)
	assert.Equal(t, token, session.Token)

	_, result = store.TouchAndCheck("no-such-token")
	assert.Equal(t, TouchNotFound, result)
}

func TestSessionStore_SlidingTTL(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)

	now := time.Now()
	store.NowFunc = func() time.Time { return now }

	token, err := store.Create("mila", RoleUser)
	require.NoError(t, err)

	// access just inside the window succeeds and refreshes
	now = now.Add(2*time.Minute + 59*time.Second)
	_, result := store.TouchAndCheck(token)
	assert.Equal(t, TouchValid, result)

	// another access inside the refreshed window still succeeds
	now = now.Add(2*time.Minute + 59*time.Second)
	_, result = store.TouchAndCheck(token)
	assert.Equal(t, TouchValid, result)

	// past the refreshed window: expired and removed
	now = now.Add(3*time.Minute + 1*time.Second)
	_, result = store.TouchAndCheck(token)
	assert.Equal(t, TouchExpired, result)
	assert.Equal(t, 0, store.Len())

	// a later request with the same token cannot tell it ever existed
	_, result = store.TouchAndCheck(token)
	assert.Equal(t, TouchNotFound, result)
}

func TestSessionStore_LastTouchedMonotonic(t *testing.T) {
	store := NewSessionStore(time.Hour)

	now := time.Now()
	store.NowFunc = func() time.Time { return now }

	token, err := store.Create("mila", RoleUser)
	require.NoError(t, err)

	last := now
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		session, result := store.TouchAndCheck(token)
		require.Equal(t, TouchValid, result)
		assert.False(t, session.LastTouched.Before(last))
		last = session.LastTouched
	}
}

func TestSessionStore_RemoveIdempotent(t *testing.T) {
	store := NewSessionStore(time.Hour)

	token, err := store.Create("mila", RoleUser)
	require.NoError(t, err)

	assert.True(t, store.Remove(token))
	// second removal is a no-op, not an error
	assert.False(t, store.Remove(token))

	_, result := store.TouchAndCheck(token)
	assert.Equal(t, TouchNotFound, result)
}

func TestSessionStore_NoBackgroundSweep(t *testing.T) {
	store := NewSessionStore(time.Millisecond)

	token, err := store.Create("mila", RoleUser)
	require.NoError(t, err)

	// long past the TTL, but never touched: the record stays in memory
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, store.Len())

	// first access after expiry removes it
	_, result := store.TouchAndCheck(token)
	assert.Equal(t, TouchExpired, result)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_ConcurrentTouchOnExpiredToken(t *testing.T) {
	store := NewSessionStore(time.Minute)

	created := time.Now()
	store.NowFunc = func() time.Time { return created }
	token, err := store.Create("mila", RoleUser)
	require.NoError(t, err)

	// every goroutine observes a stale session; exactly one may see
	// Expired, the rest must see NotFound, never Valid
	store.NowFunc = func() time.Time { return created.Add(2 * time.Minute) }

	const workers = 32
	results := make(chan TouchResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, result := store.TouchAndCheck(token)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	var expired, notFound int
	for result := range results {
		switch result {
		case TouchExpired:
			expired++
		case TouchNotFound:
			notFound++
		default:
			t.Fatalf("stale token observed as valid")
		}
	}
	assert.Equal(t, 1, expired)
	assert.Equal(t, workers-1, notFound)
}

func TestSessionStore_ConcurrentCreateAndTouch(t *testing.T) {
	store := NewSessionStore(time.Hour)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := store.Create("mila", RoleUser)
			assert.NoError(t, err)
			for j := 0; j < 50; j++ {
				_, result := store.TouchAndCheck(token)
				assert.Equal(t, TouchValid, result)
			}
			store.Remove(token)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}
