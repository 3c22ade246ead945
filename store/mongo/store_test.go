package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xraph/botrelay/store"
	botmongo "github.com/xraph/botrelay/store/mongo"
	"github.com/xraph/botrelay/store/storetest"
)

// Set BOTRELAY_TEST_MONGO_URI (e.g. mongodb://localhost:27017) to run
// against a live server. Each subtest gets its own database.
func TestConformance(t *testing.T) {
	uri := os.Getenv("BOTRELAY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BOTRELAY_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := botmongo.Connect(uri, fmt.Sprintf("botrelay_test_%d", time.Now().UnixNano()))
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() {
			_ = s.DB().Drop(ctx)
			_ = s.Close()
		})
		return s
	})
}
