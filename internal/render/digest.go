// Package render turns a selection result into the digest artifacts consumed
// downstream: a markdown document for human delivery and a JSON payload for
// machine consumers.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ivdradar/internal/dedupe"
	"ivdradar/internal/domain"
	"ivdradar/internal/selection"
)

const summaryPreviewRunes = 280

// Digest renders the selection as a markdown document, one section per
// story, in selection order.
func Digest(title string, res selection.Result, rep dedupe.Report, now time.Time) string {
	var b strings.Builder

	if title == "" {
		title = "IVD industry digest"
	}
	fmt.Fprintf(&b, "# %s — %s\n\n", title, now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "%d stories selected from %d items (%d duplicates collapsed).\n\n",
		res.Summary.SelectedCount, rep.ItemsBefore, rep.DedupedCount)

	for i, story := range res.Stories {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, strings.TrimSpace(story.Title))
		fmt.Fprintf(&b, "- Source: %s (%s, evidence %s, signal %s, score %.2f)\n",
			fallback(story.Source, "unknown"), story.SourceBucket, story.EvidenceGrade, story.SignalLevel, story.QualityScore)
		if u := story.PageURL(); u != "" {
			fmt.Fprintf(&b, "- Link: %s\n", u)
		}
		if story.OriginalSourceURL != "" {
			fmt.Fprintf(&b, "- Original: %s\n", story.OriginalSourceURL)
		}
		if story.EventType != "" {
			fmt.Fprintf(&b, "- Event type: %s\n", story.EventType)
		}
		if summary := preview(story.SummaryText()); summary != "" {
			fmt.Fprintf(&b, "\n%s\n", summary)
		}
		if len(story.OtherSources) > 0 {
			fmt.Fprintf(&b, "\nAlso covered by:\n")
			for _, other := range story.OtherSources {
				fmt.Fprintf(&b, "- %s: %s\n", fallback(other.SourceName, "unknown"), other.URL)
			}
		}
		b.WriteString("\n")
	}

	writeSummary(&b, res.Summary)
	return b.String()
}

// DigestJSON serializes the selected stories for downstream consumers (the
// documented Story fields only).
func DigestJSON(stories []domain.Story) ([]byte, error) {
	type entry struct {
		StoryID           string               `json:"story_id"`
		ItemID            string               `json:"item_id"`
		Title             string               `json:"title"`
		URL               string               `json:"url"`
		Summary           string               `json:"summary"`
		Source            string               `json:"source"`
		SourceBucket      domain.Bucket        `json:"source_bucket"`
		EvidenceGrade     domain.Grade         `json:"evidence_grade"`
		SignalLevel       domain.SignalLevel   `json:"signal_level"`
		QualityScore      float64              `json:"quality_score"`
		EventType         string               `json:"event_type,omitempty"`
		OriginalSourceURL string               `json:"original_source_url,omitempty"`
		OtherSources      []domain.OtherSource `json:"other_sources,omitempty"`
	}

	payload := make([]entry, 0, len(stories))
	for _, story := range stories {
		payload = append(payload, entry{
			StoryID:           story.StoryID,
			ItemID:            story.ItemID,
			Title:             story.Title,
			URL:               story.PageURL(),
			Summary:           PlainText(story.SummaryText()),
			Source:            story.Source,
			SourceBucket:      story.SourceBucket,
			EvidenceGrade:     story.EvidenceGrade,
			SignalLevel:       story.SignalLevel,
			QualityScore:      story.QualityScore,
			EventType:         story.EventType,
			OriginalSourceURL: story.OriginalSourceURL,
			OtherSources:      story.OtherSources,
		})
	}
	return json.Marshal(payload)
}

// PlainText strips markup from a feed summary. RSS summaries frequently
// arrive as HTML fragments; unparsable input is returned trimmed as-is.
func PlainText(html string) string {
	if !strings.ContainsRune(html, '<') {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func preview(summary string) string {
	text := PlainText(summary)
	runes := []rune(text)
	if len(runes) <= summaryPreviewRunes {
		return text
	}
	return string(runes[:summaryPreviewRunes]) + "…"
}

func writeSummary(b *strings.Builder, summary selection.Summary) {
	b.WriteString("---\n\n")
	fmt.Fprintf(b, "Selected by bucket:\n")
	buckets := make([]string, 0, len(summary.SelectedByBucket))
	for bucket := range summary.SelectedByBucket {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	for _, bucket := range buckets {
		fmt.Fprintf(b, "- %s: %d\n", bucket, summary.SelectedByBucket[bucket])
	}
	if len(summary.Dropped) > 0 {
		fmt.Fprintf(b, "\nDropped (%d):\n", len(summary.Dropped))
		for _, d := range summary.Dropped {
			fmt.Fprintf(b, "- %s — %s\n", d.Reason, fallback(d.Title, d.ItemID))
		}
	}
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
