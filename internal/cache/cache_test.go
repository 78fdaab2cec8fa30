package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func waitForKey(t *testing.T, mr *miniredis.Miniredis, key string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !mr.Exists(key) {
		if time.Now().After(deadline) {
			t.Fatalf("key %q was never written", key)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type definition struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheOrExecute(t *testing.T) {
	mr, client := newTestRedis(t)
	helper := NewCacheHelper(client, AssessmentCacheConfig.Prefix)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return definition{ID: 4, Title: "Midterm"}, nil
	}

	var first definition
	if err := helper.CacheOrExecute(ctx, DefinitionKey(4), &first, time.Minute, fetch); err != nil {
		t.Fatalf("miss: %v", err)
	}
	if first.Title != "Midterm" || calls != 1 {
		t.Fatalf("miss returned %+v after %d calls", first, calls)
	}

	waitForKey(t, mr, helper.GetCacheKey(DefinitionKey(4)))

	var second definition
	if err := helper.CacheOrExecute(ctx, DefinitionKey(4), &second, time.Minute, fetch); err != nil {
		t.Fatalf("hit: %v", err)
	}
	if second != first || calls != 1 {
		t.Errorf("hit returned %+v after %d calls", second, calls)
	}
}

func TestCacheOrExecuteFetchError(t *testing.T) {
	_, client := newTestRedis(t)
	helper := NewCacheHelper(client, StatsCacheConfig.Prefix)
	boom := errors.New("database down")

	var dest definition
	err := helper.CacheOrExecute(context.Background(), StatsKey(1), &dest, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want fetch error", err)
	}
}

func TestNilClientAlwaysMisses(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	var dest definition
	if err := cm.Assessment.Get(ctx, DefinitionKey(1), &dest); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("get: got %v, want ErrCacheNotAvailable", err)
	}
	if err := cm.Assessment.Set(ctx, DefinitionKey(1), definition{ID: 1}, time.Minute); err != nil {
		t.Errorf("set: %v", err)
	}

	calls := 0
	err := cm.Assessment.CacheOrExecute(ctx, DefinitionKey(1), &dest, time.Minute, func() (interface{}, error) {
		calls++
		return definition{ID: 1}, nil
	})
	if err != nil || calls != 1 || dest.ID != 1 {
		t.Errorf("cache-aside without redis: err=%v calls=%d dest=%+v", err, calls, dest)
	}
	if err := cm.HealthCheck(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("health: got %v", err)
	}
}

func TestInvalidateAssessmentCache(t *testing.T) {
	mr, client := newTestRedis(t)
	cm := NewCacheManager(client)
	ctx := context.Background()

	seed := map[*CacheHelper][]string{
		cm.Assessment: {DefinitionKey(7), DefinitionKey(8), "instructor:teacher-1:page:1", "instructor:teacher-2:page:1"},
		cm.Stats:      {StatsKey(7), "assessment:7:percentiles", StatsKey(8)},
	}
	for helper, keys := range seed {
		for _, key := range keys {
			if err := helper.Set(ctx, key, definition{ID: 1}, time.Minute); err != nil {
				t.Fatalf("seed %s: %v", key, err)
			}
		}
	}

	InvalidateAssessmentCache(ctx, cm, 7, "teacher-1")

	gone := []string{
		cm.Assessment.GetCacheKey(DefinitionKey(7)),
		cm.Assessment.GetCacheKey("instructor:teacher-1:page:1"),
		cm.Stats.GetCacheKey(StatsKey(7)),
		cm.Stats.GetCacheKey("assessment:7:percentiles"),
	}
	for _, key := range gone {
		if mr.Exists(key) {
			t.Errorf("%s survived invalidation", key)
		}
	}

	kept := []string{
		cm.Assessment.GetCacheKey(DefinitionKey(8)),
		cm.Assessment.GetCacheKey("instructor:teacher-2:page:1"),
		cm.Stats.GetCacheKey(StatsKey(8)),
	}
	for _, key := range kept {
		if !mr.Exists(key) {
			t.Errorf("%s was invalidated", key)
		}
	}
}

func TestIntegrityFeed(t *testing.T) {
	_, client := newTestRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := NewIntegrityFeed(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices, err := feed.Subscribe(ctx, 3)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	feed.Publish(ctx, IntegrityNotice{Type: "tab_switch", AttemptID: 11, AssessmentID: 4, StudentID: "student-9", TabSwitchCount: 1, At: at})
	feed.Publish(ctx, IntegrityNotice{Type: "tab_switch", AttemptID: 12, AssessmentID: 3, StudentID: "student-1", TabSwitchCount: 2, At: at})

	select {
	case notice := <-notices:
		if notice.AttemptID != 12 || notice.TabSwitchCount != 2 || !notice.At.Equal(at) {
			t.Errorf("notice = %+v", notice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notice received")
	}

	cancel()
	select {
	case _, open := <-notices:
		if open {
			t.Error("unexpected notice after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestIntegrityFeedWithoutRedis(t *testing.T) {
	feed := NewIntegrityFeed(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	feed.Publish(context.Background(), IntegrityNotice{AssessmentID: 1})

	if _, err := feed.Subscribe(context.Background(), 1); !errors.Is(err, ErrCacheNotAvailable) {
		t.Fatalf("got %v, want ErrCacheNotAvailable", err)
	}

	var nilFeed *IntegrityFeed
	nilFeed.Publish(context.Background(), IntegrityNotice{AssessmentID: 1})
}
