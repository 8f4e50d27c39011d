package batchfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBatch(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	return path
}

func TestFetchDecodesBatch(t *testing.T) {
	t.Parallel()

	path := writeBatch(t, `{
		"items": [
			{
				"title": "FDA issues new IVD guidance",
				"url": "https://www.fda.gov/news/1",
				"summary": "Guidance details.",
				"source": "FDA Newsroom",
				"source_id": "fda_news",
				"published_at": "2026-03-10T08:00:00Z"
			},
			{
				"title": "Dated only",
				"link": "https://x.example/2",
				"source_id": "x",
				"published_at": "2026-03-09"
			},
			{
				"title": "Space-separated stamp",
				"source_id": "y",
				"published_at": "2026-03-08 14:30:00"
			}
		],
		"sources": {
			"fda_news": {"tags": ["regulatory"], "trust_tier": "A", "fetcher": "rss"}
		}
	}`)

	batch, err := New(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(batch.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(batch.Items))
	}

	first := batch.Items[0]
	want := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v, want %v", first.PublishedAt, want)
	}
	if batch.Items[1].PublishedAt.IsZero() || batch.Items[2].PublishedAt.IsZero() {
		t.Fatalf("date-only and space-separated stamps must parse")
	}

	meta := batch.Meta(first)
	if meta.TrustTier != "A" || meta.Fetcher != "rss" {
		t.Fatalf("source metadata not joined: %+v", meta)
	}
}

func TestFetchUnparsableTimestampsResolveToZero(t *testing.T) {
	t.Parallel()

	path := writeBatch(t, `{"items": [{"title": "t", "source_id": "s", "published_at": "soonish"}]}`)
	batch, err := New(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !batch.Items[0].PublishedAt.IsZero() {
		t.Fatalf("garbage timestamp should land on the zero time, got %v", batch.Items[0].PublishedAt)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	if _, err := New(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background()); err == nil {
		t.Fatalf("missing file must error")
	}

	path := writeBatch(t, `{"items": [`)
	if _, err := New(path).Fetch(context.Background()); err == nil {
		t.Fatalf("malformed JSON must error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(path).Fetch(ctx); err == nil {
		t.Fatalf("canceled context must error")
	}
}
