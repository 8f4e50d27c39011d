package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ivdradar/internal/dedupe"
	"ivdradar/internal/domain"
	"ivdradar/internal/selection"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"plain text stays", "plain text stays"},
		{"  padded  ", "padded"},
		{"<p>FDA issues <b>new</b> guidance</p>", "FDA issues new guidance"},
		{"line<br/>break &amp; entity", "line break & entity"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDigestContainsStoriesInSelectionOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	res := selection.Result{
		Stories: []domain.Story{
			{
				StoryID: "story-0001-abc",
				ScoredItem: domain.ScoredItem{
					RawItem: domain.RawItem{
						Title:   "FDA issues new IVD guidance",
						URL:     "https://www.fda.gov/news/1",
						Summary: "<p>Updated guidance for diagnostic submissions.</p>",
						Source:  "FDA Newsroom",
					},
					ItemID:            "abc",
					SourceBucket:      domain.BucketRegulatory,
					EvidenceGrade:     domain.GradeA,
					SignalLevel:       domain.SignalRed,
					QualityScore:      87.5,
					OriginalSourceURL: "https://www.fda.gov/media/full",
				},
				OtherSources: []domain.OtherSource{
					{SourceName: "Trade Wire", URL: "https://trade.example/1"},
				},
			},
			{
				StoryID: "story-0002-def",
				ScoredItem: domain.ScoredItem{
					RawItem:       domain.RawItem{Title: "Roche announces assay launch", URL: "https://roche.com/x"},
					ItemID:        "def",
					SourceBucket:  domain.BucketCompany,
					EvidenceGrade: domain.GradeB,
					SignalLevel:   domain.SignalGray,
					QualityScore:  70,
				},
			},
		},
		Summary: selection.Summary{
			SelectedCount:    2,
			SelectedByBucket: map[string]int{"regulatory": 1, "company": 1},
			Dropped: []selection.Dropped{
				{ItemID: "ggg", Title: "Syndicated coverage", Reason: selection.ReasonAggregatorWithoutOriginal},
			},
		},
	}
	rep := dedupe.Report{ItemsBefore: 5, ItemsAfter: 3, DedupedCount: 2}

	out := Digest("IVD industry digest", res, rep, now)

	if !strings.Contains(out, "# IVD industry digest — 2026-03-10") {
		t.Fatalf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "2 stories selected from 5 items (2 duplicates collapsed).") {
		t.Fatalf("missing run summary:\n%s", out)
	}
	first := strings.Index(out, "## 1. FDA issues new IVD guidance")
	second := strings.Index(out, "## 2. Roche announces assay launch")
	if first < 0 || second < 0 || second < first {
		t.Fatalf("stories missing or out of order:\n%s", out)
	}
	if !strings.Contains(out, "Updated guidance for diagnostic submissions.") {
		t.Fatalf("summary should be rendered markup-free:\n%s", out)
	}
	if strings.Contains(out, "<p>") {
		t.Fatalf("raw markup leaked into the digest:\n%s", out)
	}
	if !strings.Contains(out, "- Original: https://www.fda.gov/media/full") {
		t.Fatalf("missing original link line:\n%s", out)
	}
	if !strings.Contains(out, "- Trade Wire: https://trade.example/1") {
		t.Fatalf("missing other-sources line:\n%s", out)
	}
	if !strings.Contains(out, "aggregator_without_original_source_url") {
		t.Fatalf("missing drop audit:\n%s", out)
	}
}

func TestDigestPreviewTruncatesLongSummaries(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("字", 400)
	res := selection.Result{
		Stories: []domain.Story{{
			ScoredItem: domain.ScoredItem{
				RawItem: domain.RawItem{Title: "T", Summary: long},
			},
		}},
		Summary: selection.Summary{SelectedCount: 1, SelectedByBucket: map[string]int{}},
	}

	out := Digest("", res, dedupe.Report{}, time.Now())
	if strings.Contains(out, long) {
		t.Fatalf("long summary should be truncated")
	}
	if !strings.Contains(out, strings.Repeat("字", 280)+"…") {
		t.Fatalf("preview should keep 280 runes and an ellipsis")
	}
}

func TestDigestJSON(t *testing.T) {
	t.Parallel()

	stories := []domain.Story{{
		StoryID: "story-0001-abc",
		ScoredItem: domain.ScoredItem{
			RawItem: domain.RawItem{
				Title:   "FDA issues new IVD guidance",
				Link:    "https://www.fda.gov/news/1",
				Summary: "<p>Guidance details.</p>",
			},
			ItemID:        "abc",
			SourceBucket:  domain.BucketRegulatory,
			EvidenceGrade: domain.GradeA,
			SignalLevel:   domain.SignalRed,
			QualityScore:  87.5,
		},
	}}

	raw, err := DigestJSON(stories)
	if err != nil {
		t.Fatalf("DigestJSON: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(decoded))
	}
	entry := decoded[0]
	if entry["story_id"] != "story-0001-abc" || entry["url"] != "https://www.fda.gov/news/1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["summary"] != "Guidance details." {
		t.Fatalf("summary should be stripped to plain text, got %q", entry["summary"])
	}
	if entry["signal_level"] != "红" {
		t.Fatalf("signal level = %v", entry["signal_level"])
	}
	if _, present := entry["original_source_url"]; present {
		t.Fatalf("empty optional fields must be omitted")
	}
}
