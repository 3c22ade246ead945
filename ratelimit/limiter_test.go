package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAllow_Unlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("alice_bot") {
			t.Fatal("unlimited limiter should always allow")
		}
	}
}

func TestAllow_NilLimiter(t *testing.T) {
	var l *Limiter
	if !l.Allow("alice_bot") {
		t.Fatal("nil limiter should allow")
	}
	l.Reset("alice_bot")
}

func TestAllow_RateLimited(t *testing.T) {
	l := New(2, 2)

	// First two should be allowed (bucket starts full).
	if !l.Allow("alice_bot") {
		t.Fatal("first call should be allowed")
	}
	if !l.Allow("alice_bot") {
		t.Fatal("second call should be allowed")
	}

	// Third should be denied (bucket exhausted).
	if l.Allow("alice_bot") {
		t.Fatal("third call should be denied")
	}
}

func TestAllow_PerKey(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("alice_bot") {
		t.Fatal("alice should be allowed")
	}
	if !l.Allow("bobby_bot") {
		t.Fatal("bobby has his own bucket")
	}
	if l.Allow("alice_bot") {
		t.Fatal("alice should be denied")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := New(10, 10)

	// Exhaust the bucket.
	for i := 0; i < 10; i++ {
		l.Allow("alice_bot")
	}
	if l.Allow("alice_bot") {
		t.Fatal("should be denied after exhausting bucket")
	}

	time.Sleep(200 * time.Millisecond)

	if !l.Allow("alice_bot") {
		t.Fatal("should be allowed after refill")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(1, 1)
	l.Allow("alice_bot")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "alice_bot"); err == nil {
		t.Fatal("Wait should return error when the deadline is too close")
	}
}

func TestWait_EventuallyAllowed(t *testing.T) {
	l := New(20, 20)
	for i := 0; i < 20; i++ {
		l.Allow("alice_bot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, "alice_bot"); err != nil {
		t.Fatalf("Wait should succeed, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Wait should have blocked for at least some time")
	}
}

func TestReset(t *testing.T) {
	l := New(1, 1)

	l.Allow("alice_bot")
	if l.Allow("alice_bot") {
		t.Fatal("should be denied")
	}

	l.Reset("alice_bot")

	if !l.Allow("alice_bot") {
		t.Fatal("should be allowed after reset")
	}
}

func TestConcurrentAccess(t *testing.T) {
	l := New(100, 100)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("alice_bot")
		}()
	}

	wg.Wait()
	close(allowed)

	trueCount := 0
	for v := range allowed {
		if v {
			trueCount++
		}
	}

	if trueCount > 101 {
		t.Fatalf("expected about 100 allowed, got %d", trueCount)
	}
	if trueCount < 90 {
		t.Fatalf("expected at least 90 allowed (timing), got %d", trueCount)
	}
}
