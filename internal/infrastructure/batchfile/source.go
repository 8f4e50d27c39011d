// Package batchfile implements ports.ItemSource over a captured batch file,
// so a curation run can be replayed from a snapshot instead of live feeds.
package batchfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ivdradar/internal/domain"
	"ivdradar/internal/ports"
)

// Source loads one JSON batch document from disk.
type Source struct {
	path string
}

var _ ports.ItemSource = (*Source)(nil)

// New points the source at a batch file.
func New(path string) *Source {
	return &Source{path: path}
}

// timeLayouts are the publish-timestamp shapes accepted on the wire.
// Unparsable or absent timestamps resolve to the zero time, which the scorer
// treats as "older than 14 days".
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type wireItem struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Link         string `json:"link"`
	CanonicalURL string `json:"canonical_url"`
	Summary      string `json:"summary"`
	SummaryCN    string `json:"summary_cn"`
	Source       string `json:"source"`
	SourceID     string `json:"source_id"`
	Fetcher      string `json:"fetcher"`
	EventType    string `json:"event_type"`
	PublishedAt  string `json:"published_at"`
}

type wireBatch struct {
	Items   []wireItem                   `json:"items"`
	Sources map[string]domain.SourceMeta `json:"sources"`
}

// Fetch reads and decodes the batch file.
func (s *Source) Fetch(ctx context.Context) (domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return domain.Batch{}, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("read batch %s: %w", s.path, err)
	}

	var wire wireBatch
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.Batch{}, fmt.Errorf("parse batch %s: %w", s.path, err)
	}

	batch := domain.Batch{
		Items:   make([]domain.RawItem, 0, len(wire.Items)),
		Sources: wire.Sources,
	}
	for _, w := range wire.Items {
		batch.Items = append(batch.Items, domain.RawItem{
			Title:        w.Title,
			URL:          w.URL,
			Link:         w.Link,
			CanonicalURL: w.CanonicalURL,
			Summary:      w.Summary,
			SummaryCN:    w.SummaryCN,
			Source:       w.Source,
			SourceID:     w.SourceID,
			Fetcher:      w.Fetcher,
			EventType:    w.EventType,
			PublishedAt:  parseTime(w.PublishedAt),
		})
	}
	return batch, nil
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
