package dedup

import (
	"context"
	"testing"
	"time"

	"ai-bookingchat-be/internal/pkg/logger"
)

func TestSeenAndMarkLocalTier(t *testing.T) {
	cache := NewIdempotencyCache(nil, 5*time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	if cache.SeenAndMark(ctx, "wamid.123") {
		t.Fatal("first delivery reported as seen")
	}
	if !cache.SeenAndMark(ctx, "wamid.123") {
		t.Fatal("second delivery not reported as seen")
	}
	if cache.SeenAndMark(ctx, "wamid.456") {
		t.Fatal("unrelated message id reported as seen")
	}
}

func TestSeenAndMarkEmptyID(t *testing.T) {
	cache := NewIdempotencyCache(nil, 5*time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	// Messages without a provider id never dedup here; the persister's
	// content rule covers them.
	if cache.SeenAndMark(ctx, "") {
		t.Fatal("empty id reported as seen")
	}
	if cache.SeenAndMark(ctx, "") {
		t.Fatal("empty id reported as seen on repeat")
	}
	if cache.Seen(ctx, "") {
		t.Fatal("empty id reported by Seen")
	}
}

func TestSeenDoesNotMark(t *testing.T) {
	cache := NewIdempotencyCache(nil, 5*time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	if cache.Seen(ctx, "wamid.789") {
		t.Fatal("unseen id reported as seen")
	}
	if cache.SeenAndMark(ctx, "wamid.789") {
		t.Fatal("Seen must not mark")
	}
	if !cache.Seen(ctx, "wamid.789") {
		t.Fatal("marked id not reported by Seen")
	}
}
