package frames

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/visionsuite/camstream/internal/stream"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, 30*time.Second), mr
}

func record(sourceID string, at time.Time, data string) stream.FrameRecord {
	return stream.FrameRecord{
		SourceID:   sourceID,
		Data:       []byte(data),
		CapturedAt: at,
	}
}

func TestStoreAndGetLatestFrame(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, data := range []string{"first", "second", "third"} {
		rec := record("src_a", base.Add(time.Duration(i)*time.Second), data)
		if err := store.StoreFrame(ctx, rec); err != nil {
			t.Fatalf("StoreFrame: %v", err)
		}
	}

	latest, err := store.GetLatestFrame(ctx, "src_a")
	if err != nil {
		t.Fatalf("GetLatestFrame: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a frame")
	}
	if string(latest.Data) != "third" {
		t.Fatalf("latest = %q", latest.Data)
	}
	if latest.CapturedAt != base.Add(2*time.Second).UnixMilli() {
		t.Fatalf("unexpected timestamp %d", latest.CapturedAt)
	}
}

func TestGetLatestFrameEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	latest, err := store.GetLatestFrame(context.Background(), "src_missing")
	if err != nil {
		t.Fatalf("GetLatestFrame: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil for unknown source")
	}
}

func TestGetFramesWindow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 5; i++ {
		rec := record("src_a", base.Add(time.Duration(i)*time.Second), string(rune('a'+i)))
		if err := store.StoreFrame(ctx, rec); err != nil {
			t.Fatalf("StoreFrame: %v", err)
		}
	}

	start := base.Add(time.Second).UnixMilli()
	end := base.Add(3 * time.Second).UnixMilli()
	got, err := store.GetFrames(ctx, "src_a", start, end, 10)
	if err != nil {
		t.Fatalf("GetFrames: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 frames in window, got %d", len(got))
	}
	for i, f := range got {
		want := string(rune('b' + i))
		if string(f.Data) != want {
			t.Fatalf("frame %d = %q, want %q", i, f.Data, want)
		}
	}
}

func TestGetFramesLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 10; i++ {
		rec := record("src_a", base.Add(time.Duration(i)*time.Second), string(rune('0'+i)))
		if err := store.StoreFrame(ctx, rec); err != nil {
			t.Fatalf("StoreFrame: %v", err)
		}
	}

	got, err := store.GetFrames(ctx, "src_a", 0, base.Add(time.Hour).UnixMilli(), 4)
	if err != nil {
		t.Fatalf("GetFrames: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(got))
	}
}

func TestDeleteFrames(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.StoreFrame(ctx, record("src_a", time.Now(), "frame")); err != nil {
		t.Fatalf("StoreFrame: %v", err)
	}
	if err := store.DeleteFrames(ctx, "src_a"); err != nil {
		t.Fatalf("DeleteFrames: %v", err)
	}
	if mr.Exists("source:src_a:frames") {
		t.Fatal("archive key should be gone")
	}
}

func TestStoreFrameSetsTTL(t *testing.T) {
	store, mr := newTestStore(t)

	if err := store.StoreFrame(context.Background(), record("src_a", time.Now(), "frame")); err != nil {
		t.Fatalf("StoreFrame: %v", err)
	}
	if ttl := mr.TTL("source:src_a:frames"); ttl <= 0 {
		t.Fatalf("expected a positive TTL, got %v", ttl)
	}
}
