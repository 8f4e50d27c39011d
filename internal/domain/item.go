package domain

import (
	"strings"
	"time"
)

// Bucket is the coarse source category driving weight and evidence defaults.
type Bucket string

const (
	BucketRegulatory     Bucket = "regulatory"
	BucketJournal        Bucket = "journal"
	BucketPreprint       Bucket = "preprint"
	BucketCompany        Bucket = "company"
	BucketMarketResearch Bucket = "market_research"
	BucketThinktank      Bucket = "thinktank"
	BucketAggregator     Bucket = "aggregator"
	BucketMedia          Bucket = "media"

	// BucketJournalPreprint is the combined quota bucket; journal and preprint
	// items share one allocation during selection.
	BucketJournalPreprint Bucket = "journal_preprint"
)

// Grade is the A-D evidence confidence tier.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Rank maps grades to a comparable order (A=4 .. D=1). Unknown grades rank
// lowest.
func (g Grade) Rank() int {
	switch Grade(strings.ToUpper(strings.TrimSpace(string(g)))) {
	case GradeA:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	default:
		return 1
	}
}

// SignalLevel is the urgency tag derived from evidence-gated keyword matches.
type SignalLevel string

const (
	SignalRed    SignalLevel = "红"
	SignalOrange SignalLevel = "橙"
	SignalYellow SignalLevel = "黄"
	SignalGray   SignalLevel = "灰"
)

// RawItem is one collected article as delivered by an upstream connector.
// The curation engine never mutates the caller's copy.
type RawItem struct {
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	Link         string    `json:"link,omitempty"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	SummaryCN    string    `json:"summary_cn,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceID     string    `json:"source_id,omitempty"`
	Fetcher      string    `json:"fetcher,omitempty"`
	EventType    string    `json:"event_type,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
}

// PageURL resolves the item link, preferring the url field over link.
func (i RawItem) PageURL() string {
	if strings.TrimSpace(i.URL) != "" {
		return strings.TrimSpace(i.URL)
	}
	return strings.TrimSpace(i.Link)
}

// SummaryText resolves the display summary, preferring the zh-enriched text.
func (i RawItem) SummaryText() string {
	if i.SummaryCN != "" {
		return i.SummaryCN
	}
	return i.Summary
}

// HasPublishedAt reports whether a publish timestamp is known.
func (i RawItem) HasPublishedAt() bool {
	return !i.PublishedAt.IsZero()
}

// SourceMeta describes the registry entry for one source.
type SourceMeta struct {
	Tags      []string `json:"tags,omitempty"`
	Fetcher   string   `json:"fetcher,omitempty"`
	Connector string   `json:"connector,omitempty"`
	TrustTier string   `json:"trust_tier,omitempty"`
}

// FetcherName resolves the connector name with the item-level fallback chain.
func (m SourceMeta) FetcherName(item RawItem) string {
	for _, v := range []string{m.Fetcher, m.Connector, item.Fetcher} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "rss"
}

// Tier returns the normalized trust tier, defaulting to B.
func (m SourceMeta) Tier() string {
	t := strings.ToUpper(strings.TrimSpace(m.TrustTier))
	if t == "" {
		return "B"
	}
	return t
}

// Batch is the unit handed to the pipeline: collected items plus the source
// metadata they were collected under, keyed by source id.
type Batch struct {
	Items   []RawItem             `json:"items"`
	Sources map[string]SourceMeta `json:"sources,omitempty"`
}

// Meta looks up the metadata for an item's source; absent entries resolve to
// the zero SourceMeta, whose accessors fall back to documented defaults.
func (b Batch) Meta(item RawItem) SourceMeta {
	if b.Sources == nil {
		return SourceMeta{}
	}
	return b.Sources[item.SourceID]
}

// WeightDetail records how a source weight was assembled, for audit output.
type WeightDetail struct {
	Bucket    Bucket  `json:"bucket"`
	Base      float64 `json:"base"`
	TrustTier string  `json:"trust_tier"`
	Adjust    float64 `json:"adjust"`
}

// ScoreBreakdown keeps every intermediate scoring term so that digests and
// tests can audit how a quality score came to be.
type ScoreBreakdown struct {
	EvidencePoints     float64      `json:"evidence_points"`
	SourcePoints       float64      `json:"source_points"`
	RecencyPoints      float64      `json:"recency_points"`
	CompletenessPoints float64      `json:"completeness_points"`
	PenaltyPoints      float64      `json:"penalty_points"`
	SignalBonus        float64      `json:"signal_bonus"`
	EvidenceReason     string       `json:"evidence_reason"`
	SignalReason       string       `json:"signal_reason"`
	SourceDetail       WeightDetail `json:"source_meta"`
}

// ScoredItem is a RawItem after classification and scoring. Created once per
// item; immutable afterwards.
type ScoredItem struct {
	RawItem

	ItemID            string         `json:"item_id"`
	SourceBucket      Bucket         `json:"source_bucket"`
	EvidenceGrade     Grade          `json:"evidence_grade"`
	SourceWeight      float64        `json:"source_weight"`
	SignalLevel       SignalLevel    `json:"signal_level"`
	QualityScore      float64        `json:"quality_score"`
	OriginalSourceURL string         `json:"original_source_url,omitempty"`
	Breakdown         ScoreBreakdown `json:"score_breakdown"`
}

// OtherSource summarizes a discarded near-duplicate of a story.
type OtherSource struct {
	SourceName  string `json:"source_name"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Title       string `json:"title"`
}

// Story is the canonical item standing in for a cluster of near-duplicate
// reports, annotated with cluster provenance.
type Story struct {
	ScoredItem

	StoryID        string        `json:"story_id"`
	DedupeKey      string        `json:"dedupe_key"`
	ClusterSize    int           `json:"cluster_size"`
	DedupedFromIDs []string      `json:"deduped_from_ids"`
	OtherSources   []OtherSource `json:"other_sources"`
	DedupeReason   string        `json:"dedupe_reason"`
}
