package limiters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/boilerswap/backend/internal/keyspace"
)

func newTestLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewLock(rdb), mr
}

func TestAcquireOnce(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, keyspace.AttemptLock, "id-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if !acquired {
		t.Fatal("first Acquire should succeed")
	}

	acquired, err = lock.Acquire(ctx, keyspace.AttemptLock, "id-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if acquired {
		t.Fatal("second Acquire for the same id should fail")
	}
}

func TestAcquireIndependentKeys(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, keyspace.AttemptLock, "id-1", time.Second); !ok {
		t.Fatal("AttemptLock id-1 should acquire")
	}
	if ok, _ := lock.Acquire(ctx, keyspace.AttemptLock, "id-2", time.Second); !ok {
		t.Fatal("different id should acquire independently")
	}
	if ok, _ := lock.Acquire(ctx, keyspace.ThrottleVerify, "id-1", time.Second); !ok {
		t.Fatal("different kind should acquire independently")
	}
}

func TestAcquireExpires(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, keyspace.AttemptLock, "id-1", time.Second); !ok {
		t.Fatal("first Acquire should succeed")
	}

	mr.FastForward(2 * time.Second)

	if ok, _ := lock.Acquire(ctx, keyspace.AttemptLock, "id-1", time.Second); !ok {
		t.Fatal("Acquire after TTL expiry should succeed")
	}
}

func TestAcquireMutualExclusionUnderRace(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	const goroutines = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lock.Acquire(ctx, keyspace.AttemptLock, "contested", time.Second)
			if err != nil {
				t.Errorf("Acquire error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
