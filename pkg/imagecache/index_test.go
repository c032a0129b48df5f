package imagecache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := OpenIndex(filepath.Join(t.TempDir(), "images.db"))
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_PutAndGet(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	want := Entry{
		SourceURL:   "https://example.com/adobo.jpg",
		StoredURL:   "http://cdn.local/recipe-images/abc.jpg",
		StoragePath: "recipe-images/abc.jpg",
		Timestamp:   time.Now().Truncate(time.Millisecond),
	}
	if err := idx.Put(ctx, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := idx.Get(ctx, want.SourceURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.StoredURL != want.StoredURL || got.StoragePath != want.StoragePath {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if got.Skipped {
		t.Error("Skipped should default to false")
	}
}

func TestIndex_GetMissing(t *testing.T) {
	idx := openTestIndex(t)

	_, err := idx.Get(context.Background(), "https://example.com/missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestIndex_PutUpsert(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	src := "https://example.com/img.jpg"
	_ = idx.Put(ctx, Entry{SourceURL: src, StoredURL: "http://cdn/a.jpg"})
	_ = idx.Put(ctx, Entry{SourceURL: src, StoredURL: src, Skipped: true})

	got, err := idx.Get(ctx, src)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Skipped || got.StoredURL != src {
		t.Errorf("upsert did not replace entry: %+v", got)
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestIndex_OldestAndDelete(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := idx.Put(ctx, Entry{
			SourceURL: fmt.Sprintf("https://example.com/%d.jpg", i),
			StoredURL: fmt.Sprintf("http://cdn/%d.jpg", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	oldest, err := idx.Oldest(ctx, 2)
	if err != nil {
		t.Fatalf("Oldest failed: %v", err)
	}
	if len(oldest) != 2 {
		t.Fatalf("Oldest returned %d entries, want 2", len(oldest))
	}
	if oldest[0].SourceURL != "https://example.com/0.jpg" || oldest[1].SourceURL != "https://example.com/1.jpg" {
		t.Errorf("Oldest order wrong: %q, %q", oldest[0].SourceURL, oldest[1].SourceURL)
	}

	if err := idx.Delete(ctx, []string{oldest[0].SourceURL, oldest[1].SourceURL}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	count, _ := idx.Count(ctx)
	if count != 3 {
		t.Errorf("Count after delete = %d, want 3", count)
	}
}
