package redis_test

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/botrelay/store"
	botredis "github.com/xraph/botrelay/store/redis"
	"github.com/xraph/botrelay/store/storetest"
)

// Set BOTRELAY_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a
// live server. Each subtest flushes the selected database.
func TestConformance(t *testing.T) {
	addr := os.Getenv("BOTRELAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOTRELAY_TEST_REDIS_ADDR not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
		if err := rdb.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s := botredis.New(rdb)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
