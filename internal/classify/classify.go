// Package classify maps sources onto the bucket taxonomy and derives the
// per-source trust inputs the scorer consumes: a clamped source weight and an
// initial evidence grade.
package classify

import (
	"strings"

	"ivdradar/internal/config"
	"ivdradar/internal/domain"
)

// aggregatorFetchers are connectors that only relay third-party coverage.
var aggregatorFetchers = map[string]bool{
	"google_news": true,
	"rsshub":      true,
}

// Bucket classifies a source by its registry tags and fetcher. Checks run in
// fixed priority order; the first match wins and unmatched sources land in
// media.
func Bucket(tags []string, fetcher string) domain.Bucket {
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(strings.TrimSpace(t))] = true
	}

	if tagSet["aggregator"] || aggregatorFetchers[strings.ToLower(strings.TrimSpace(fetcher))] {
		return domain.BucketAggregator
	}
	for _, b := range []domain.Bucket{
		domain.BucketRegulatory,
		domain.BucketJournal,
		domain.BucketPreprint,
		domain.BucketCompany,
		domain.BucketMarketResearch,
		domain.BucketThinktank,
	} {
		if tagSet[string(b)] {
			return b
		}
	}
	return domain.BucketMedia
}

// SourceWeight computes the clamped weight for a source: the bucket's base
// weight plus the trust-tier adjustment, bounded by the configured range.
func SourceWeight(tags []string, trustTier, fetcher string, cfg *config.ScoringConfig) (float64, domain.WeightDetail) {
	if cfg == nil {
		cfg = config.DefaultScoring()
	}
	bucket := Bucket(tags, fetcher)

	base, ok := cfg.BaseWeightByTag[string(bucket)]
	if !ok {
		if base, ok = cfg.BaseWeightByTag[string(domain.BucketMedia)]; !ok {
			base = 0.70
		}
	}

	tier := strings.ToUpper(strings.TrimSpace(trustTier))
	if tier == "" {
		tier = "B"
	}
	adjust := cfg.TrustTierAdjust[tier]

	weight := clamp(base+adjust, cfg.SourceWeightMin, cfg.SourceWeightMax)
	return weight, domain.WeightDetail{
		Bucket:    bucket,
		Base:      base,
		TrustTier: tier,
		Adjust:    adjust,
	}
}

// EvidenceGrade assigns the initial confidence tier from the bucket alone.
func EvidenceGrade(bucket domain.Bucket) domain.Grade {
	switch bucket {
	case domain.BucketRegulatory, domain.BucketJournal:
		return domain.GradeA
	case domain.BucketCompany, domain.BucketPreprint:
		return domain.GradeB
	case domain.BucketMedia, domain.BucketMarketResearch, domain.BucketThinktank:
		return domain.GradeC
	default:
		return domain.GradeD
	}
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
