package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(calls *int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestFetchCachesUntilInvalidated(t *testing.T) {
	c := New(0, prometheus.NewRegistry())
	ctx := context.Background()
	var calls int32

	v, err := Fetch(ctx, c, "operations/list", counter(&calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = Fetch(ctx, c, "operations/list", counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Invalidate("operations")

	v, err = Fetch(ctx, c, "operations/list", counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("miss")))
}

func TestInvalidateOnlyMatchingPrefix(t *testing.T) {
	c := New(0, nil)
	ctx := context.Background()
	var calls int32

	_, err := Fetch(ctx, c, "operations/list", counter(&calls, "ops"))
	require.NoError(t, err)
	_, err = Fetch(ctx, c, "settings", counter(&calls, "settings"))
	require.NoError(t, err)

	c.Invalidate("operations")
	assert.Equal(t, 1, c.Len())

	v, err := Fetch(ctx, c, "settings", counter(&calls, "other"))
	require.NoError(t, err)
	assert.Equal(t, "settings", v)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(0, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := Fetch(ctx, c, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	var calls int32

	_, err := Fetch(ctx, c, "k", counter(&calls, "a"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	v, err := Fetch(ctx, c, "k", counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	c := New(0, nil)
	ctx := context.Background()
	release := make(chan struct{})
	var calls int32

	slow := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	wg.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(ctx, c, "k", slow)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "v", v)
	}
}

func TestCancelledCallerDoesNotFailJoinedCallers(t *testing.T) {
	c := New(0, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	slow := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "rows", nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := Fetch(leaderCtx, c, "operations/list", slow)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "operations/list", slow)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the shared fetch")
	}

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "rows", res.v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.Len())
}

func TestFetchStartedBeforeInvalidateIsNotStored(t *testing.T) {
	c := New(0, nil)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, err := Fetch(ctx, c, "operations/list", func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	c.Invalidate("operations")

	var calls int32
	fresh, err := Fetch(ctx, c, "operations/list", counter(&calls, "fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh)

	close(release)
	assert.Equal(t, "stale", <-done)

	v, err := Fetch(ctx, c, "operations/list", counter(&calls, "unused"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOlderFetchDoesNotOverwriteNewer(t *testing.T) {
	c := New(0, nil)
	gen, older := c.begin("k")
	_, newer := c.begin("k")

	c.store("k", gen, newer, "new")
	c.store("k", gen, older, "old")

	v, ok := c.lookup("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}
