// Package scoring computes the 0-100 quality score for collected items. The
// model is purely additive and every term is configurable; scoring never
// fails on malformed input, every field resolves through a defaulting
// accessor instead.
package scoring

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"ivdradar/internal/classify"
	"ivdradar/internal/config"
	"ivdradar/internal/domain"
)

// shortSummaryRunes is the length below which a summary looks like a
// duplicate-prone stub and draws the short-summary penalty.
const shortSummaryRunes = 40

var wsExpr = regexp.MustCompile(`\s+`)

// Scorer scores items against one resolved configuration. Safe for
// concurrent use; it holds no mutable state.
type Scorer struct {
	cfg *config.ScoringConfig
}

// NewScorer builds a scorer; a nil config resolves to the built-in defaults.
func NewScorer(cfg *config.ScoringConfig) *Scorer {
	if cfg == nil {
		cfg = config.DefaultScoring()
	}
	return &Scorer{cfg: cfg}
}

// ItemID derives the stable 12-hex identifier for an item from its source id,
// link, and title. Repeated scoring of the same logical item always yields
// the same id.
func ItemID(item domain.RawItem) string {
	raw := fmt.Sprintf("%s|%s|%s", item.SourceID, item.PageURL(), item.Title)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:12]
}

// Score computes the quality score and evidence grade for one item. now is
// explicit so that scoring stays a pure function of its arguments.
func (s *Scorer) Score(item domain.RawItem, meta domain.SourceMeta, now time.Time) domain.ScoredItem {
	cfg := s.cfg

	weight, detail := classify.SourceWeight(meta.Tags, meta.Tier(), meta.FetcherName(item), cfg)
	bucket := detail.Bucket
	grade := classify.EvidenceGrade(bucket)

	out := domain.ScoredItem{RawItem: item}
	out.ItemID = ItemID(item)

	if orig := classify.OriginalSourceURL(item.PageURL(), item.SummaryText()); orig != "" {
		out.OriginalSourceURL = orig
	}
	grade, evidenceReason := classify.UpgradeEvidenceByOriginal(grade, out.OriginalSourceURL, cfg)
	if evidenceReason == "" {
		evidenceReason = "bucket_based"
	}

	evidencePoints, ok := cfg.EvidencePoints[string(grade)]
	if !ok {
		if evidencePoints, ok = cfg.EvidencePoints[string(domain.GradeD)]; !ok {
			evidencePoints = 10
		}
	}
	sourcePoints := weight * cfg.SourcePointsFactor
	recencyPoints := s.recencyPoints(item.PublishedAt, now)
	completenessPoints := s.completenessPoints(item, out.OriginalSourceURL)

	penalties := 0.0
	if bucket == domain.BucketAggregator && strings.TrimSpace(out.OriginalSourceURL) == "" {
		penalties += cfg.Penalties.AggregatorWithoutOriginal
	}
	if utf8.RuneCountInString(item.SummaryText()) < shortSummaryRunes {
		penalties += cfg.Penalties.VeryShortDuplicateLike
	}

	fullText := strings.Join([]string{item.Title, item.SummaryText(), item.EventType}, " ")
	level, bonus, signalReason := s.signalLevel(item.EventType, grade, fullText)

	total := evidencePoints + sourcePoints + recencyPoints + completenessPoints + penalties + bonus

	out.SourceBucket = bucket
	out.EvidenceGrade = grade
	out.SourceWeight = round(weight, 4)
	out.SignalLevel = level
	out.QualityScore = round(clamp(total, 0, 100), 2)
	out.Breakdown = domain.ScoreBreakdown{
		EvidencePoints:     evidencePoints,
		SourcePoints:       round(sourcePoints, 4),
		RecencyPoints:      recencyPoints,
		CompletenessPoints: completenessPoints,
		PenaltyPoints:      penalties,
		SignalBonus:        bonus,
		EvidenceReason:     evidenceReason,
		SignalReason:       signalReason,
		SourceDetail:       detail,
	}
	return out
}

// ScoreBatch scores every item in a batch, resolving each item's source
// metadata from the batch registry.
func (s *Scorer) ScoreBatch(batch domain.Batch, now time.Time) []domain.ScoredItem {
	scored := make([]domain.ScoredItem, 0, len(batch.Items))
	for _, item := range batch.Items {
		scored = append(scored, s.Score(item, batch.Meta(item), now))
	}
	return scored
}

// recencyPoints buckets the article age; unknown publish time counts as
// older than 14 days.
func (s *Scorer) recencyPoints(publishedAt time.Time, now time.Time) float64 {
	rc := s.cfg.Recency
	if publishedAt.IsZero() {
		return rc.GT14
	}
	age := now.Sub(publishedAt.UTC())
	switch {
	case age < 24*time.Hour:
		return rc.LT24h
	case age < 3*24*time.Hour:
		return rc.D1to3
	case age < 7*24*time.Hour:
		return rc.D3to7
	case age < 14*24*time.Hour:
		return rc.D7to14
	default:
		return rc.GT14
	}
}

func (s *Scorer) completenessPoints(item domain.RawItem, originalURL string) float64 {
	cp := s.cfg.Completeness
	pts := 0.0
	if strings.TrimSpace(item.SummaryText()) != "" {
		pts += cp.Summary
	}
	if item.HasPublishedAt() {
		pts += cp.PublishedAt
	}
	if strings.TrimSpace(item.Source) != "" {
		pts += cp.SourceName
	}
	if strings.TrimSpace(originalURL) != "" {
		pts += cp.OriginalSourceURL
	}
	return math.Min(pts, cp.Max)
}

// signalLevel derives the 红/橙/黄/灰 urgency tag. The levels are strictly
// gated by evidence tier: red keywords only fire on A-grade items, orange
// only on B, yellow on anything C or better.
func (s *Scorer) signalLevel(eventType string, grade domain.Grade, text string) (domain.SignalLevel, float64, string) {
	rules := s.cfg.SignalRules
	level := domain.SignalGray
	reason := "default"

	switch {
	case grade == domain.GradeA && matchAny(text, rules.RedKeywords):
		level = domain.SignalRed
		reason = "A_and_red_keyword"
	case grade == domain.GradeB && matchAny(text, rules.OrangeKeywords):
		level = domain.SignalOrange
		reason = "B_and_orange_keyword"
	case grade.Rank() >= domain.GradeC.Rank() &&
		(matchAny(text, rules.YellowKeywords) || matchAny(eventType, rules.YellowKeywords)):
		level = domain.SignalYellow
		reason = "keyword_yellow"
	}

	return level, s.cfg.SignalBonus[string(level)], reason
}

func matchAny(text string, keywords []string) bool {
	t := normText(text)
	for _, kw := range keywords {
		k := normText(kw)
		if k == "" {
			continue
		}
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func normText(s string) string {
	return strings.TrimSpace(wsExpr.ReplaceAllString(strings.ToLower(s), " "))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round(x float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(x*pow) / pow
}
