package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*ContextCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewContextCache(NewRedisKV(client), ttl, zap.NewNop()), s
}

func countingBuilder(name string, calls *int) func(context.Context) (*AssembledContext, error) {
	return func(context.Context) (*AssembledContext, error) {
		*calls++
		return &AssembledContext{
			Tenant:       TenantSummary{ID: "t-1", DisplayName: name},
			LeadTypes:    DefaultLeadTypes(),
			FAQ:          []FAQItem{},
			ServicePlans: []ServicePlanItem{},
			Workflows:    []RootWorkflow{},
		}, nil
	}
}

func TestGetOrBuildCachesWithinTTL(t *testing.T) {
	cache, _ := setupTestCache(t, 300*time.Second)
	ctx := context.Background()

	calls := 0
	first, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v1", &calls))
	if err != nil {
		t.Fatalf("first GetOrBuild failed: %v", err)
	}
	if first.Tenant.DisplayName != "v1" {
		t.Fatalf("expected v1, got %s", first.Tenant.DisplayName)
	}

	// The underlying data changed but the TTL has not elapsed: the stale
	// entry must be served and the builder must not run again.
	second, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v2", &calls))
	if err != nil {
		t.Fatalf("second GetOrBuild failed: %v", err)
	}
	if second.Tenant.DisplayName != "v1" {
		t.Errorf("expected stale v1 within TTL, got %s", second.Tenant.DisplayName)
	}
	if calls != 1 {
		t.Errorf("expected 1 build, got %d", calls)
	}
}

func TestGetOrBuildRebuildsAfterTTL(t *testing.T) {
	cache, s := setupTestCache(t, 300*time.Second)
	ctx := context.Background()

	calls := 0
	if _, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v1", &calls)); err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}

	s.FastForward(301 * time.Second)

	got, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v2", &calls))
	if err != nil {
		t.Fatalf("GetOrBuild after expiry failed: %v", err)
	}
	if got.Tenant.DisplayName != "v2" {
		t.Errorf("expected rebuild after TTL, got %s", got.Tenant.DisplayName)
	}
	if calls != 2 {
		t.Errorf("expected 2 builds, got %d", calls)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	cache, _ := setupTestCache(t, 300*time.Second)
	ctx := context.Background()

	calls := 0
	if _, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v1", &calls)); err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}

	if err := cache.Invalidate(ctx, "t-1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, err := cache.GetOrBuild(ctx, "t-1", countingBuilder("v2", &calls))
	if err != nil {
		t.Fatalf("GetOrBuild after invalidate failed: %v", err)
	}
	if got.Tenant.DisplayName != "v2" {
		t.Errorf("expected fresh build after invalidate, got %s", got.Tenant.DisplayName)
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	cache, _ := setupTestCache(t, 300*time.Second)
	ctx := context.Background()

	if err := cache.Invalidate(ctx, "never-cached"); err != nil {
		t.Errorf("invalidating an uncached tenant should succeed: %v", err)
	}
}

func TestGetOrBuildFailsOpenWhenRedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	cache := NewContextCache(NewRedisKV(client), 300*time.Second, zap.NewNop())

	s.Close()

	calls := 0
	got, err := cache.GetOrBuild(context.Background(), "t-1", countingBuilder("v1", &calls))
	if err != nil {
		t.Fatalf("expected fail-open, got error: %v", err)
	}
	if got.Tenant.DisplayName != "v1" {
		t.Errorf("expected built context, got %s", got.Tenant.DisplayName)
	}
	if calls != 1 {
		t.Errorf("expected builder to run once, got %d", calls)
	}
}

func TestGetOrBuildPropagatesBuildError(t *testing.T) {
	cache, _ := setupTestCache(t, 300*time.Second)

	wantErr := errors.New("backend down")
	_, err := cache.GetOrBuild(context.Background(), "t-1", func(context.Context) (*AssembledContext, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected build error to propagate, got %v", err)
	}
}

func TestGetOrBuildDiscardsCorruptEntry(t *testing.T) {
	cache, s := setupTestCache(t, 300*time.Second)

	if err := s.Set("context:t-1", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	calls := 0
	got, err := cache.GetOrBuild(context.Background(), "t-1", countingBuilder("fresh", &calls))
	if err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}
	if got.Tenant.DisplayName != "fresh" {
		t.Errorf("expected rebuild over corrupt entry, got %s", got.Tenant.DisplayName)
	}
	if calls != 1 {
		t.Errorf("expected 1 build, got %d", calls)
	}
}
