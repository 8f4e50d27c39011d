// Package selection ranks deduplicated stories and applies per-bucket quota
// constraints to produce the final digest list.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"ivdradar/internal/config"
	"ivdradar/internal/domain"
)

// ReasonAggregatorWithoutOriginal marks stories dropped by the hard filter:
// aggregator relays with no recovered publisher link never reach the digest,
// whatever their score.
const ReasonAggregatorWithoutOriginal = "aggregator_without_original_source_url"

// Dropped records one story excluded from the selection and why.
type Dropped struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Summary is the audit trail of one selection pass.
type Summary struct {
	SelectedByBucket map[string]int     `json:"selected_by_bucket"`
	Dropped          []Dropped          `json:"dropped"`
	QuotaTargets     []config.QuotaRule `json:"quota_targets"`
	SelectedCount    int                `json:"selected_count"`
}

// Result is the final digest selection plus its audit summary. The story
// order is the order items were admitted (minimum-quota insertions first,
// then score-order fill); it is deliberately not re-sorted.
type Result struct {
	Stories []domain.Story `json:"stories"`
	Summary Summary        `json:"summary"`
}

// quotaBucket folds journal and preprint into the combined quota bucket; all
// other buckets count as themselves.
func quotaBucket(story domain.Story) string {
	switch story.SourceBucket {
	case domain.BucketJournal, domain.BucketPreprint:
		return string(domain.BucketJournalPreprint)
	default:
		return string(story.SourceBucket)
	}
}

// Select picks at most topN stories. Phase one walks the configured quota
// rules in declaration order and fills each bucket's minimum from the ranked
// list; phase two fills the remainder in score order, skipping buckets whose
// configured maximum is already met.
func Select(stories []domain.Story, topN int, cfg *config.ScoringConfig) Result {
	if cfg == nil {
		cfg = config.DefaultScoring()
	}

	ranked := append([]domain.Story(nil), stories...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if ar, br := a.EvidenceGrade.Rank(), b.EvidenceGrade.Rank(); ar != br {
			return ar > br
		}
		return a.SourceWeight > b.SourceWeight
	})

	dropped := []Dropped{}
	eligible := make([]domain.Story, 0, len(ranked))
	for _, st := range ranked {
		if st.SourceBucket == domain.BucketAggregator && strings.TrimSpace(st.OriginalSourceURL) == "" {
			dropped = append(dropped, Dropped{ItemID: st.ItemID, Title: st.Title, Reason: ReasonAggregatorWithoutOriginal})
			continue
		}
		eligible = append(eligible, st)
	}

	selected := make([]domain.Story, 0, topN)
	selectedIDs := make(map[string]bool)
	counts := make(map[string]int)

	// Phase 1: minimum quotas, in rule order.
	for _, rule := range cfg.Quotas {
		if rule.Min == nil || *rule.Min <= 0 {
			continue
		}
		for _, st := range eligible {
			if len(selected) >= topN {
				break
			}
			if selectedIDs[st.ItemID] || quotaBucket(st) != rule.Bucket {
				continue
			}
			selected = append(selected, st)
			selectedIDs[st.ItemID] = true
			counts[rule.Bucket]++
			if counts[rule.Bucket] >= *rule.Min {
				break
			}
		}
	}

	// Phase 2: fill by global ranking, honoring maximum caps.
	for _, st := range eligible {
		if len(selected) >= topN {
			break
		}
		if selectedIDs[st.ItemID] {
			continue
		}
		bucket := quotaBucket(st)
		if rule, ok := cfg.QuotaFor(bucket); ok && rule.Max != nil && counts[bucket] >= *rule.Max {
			dropped = append(dropped, Dropped{ItemID: st.ItemID, Title: st.Title, Reason: fmt.Sprintf("quota_exceeded:%s", bucket)})
			continue
		}
		selected = append(selected, st)
		selectedIDs[st.ItemID] = true
		counts[bucket]++
	}

	return Result{
		Stories: selected,
		Summary: Summary{
			SelectedByBucket: counts,
			Dropped:          dropped,
			QuotaTargets:     append([]config.QuotaRule(nil), cfg.Quotas...),
			SelectedCount:    len(selected),
		},
	}
}
