// Package dedupe collapses near-duplicate coverage of one event into a
// single canonical story.
//
// Clustering is single-pass and head-only: each incoming item is compared
// against the first member of every open cluster, in cluster-creation order,
// and joins the first cluster whose head shares its dedupe key or whose head
// title is similar enough. This trades recall for O(items x clusters) cost
// and is the behavioral contract of the engine; it is not full pairwise
// clustering and must not be "fixed" into one.
package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ivdradar/internal/config"
	"ivdradar/internal/domain"
)

// dedupeReason names the canonical tie-break order, recorded on every story.
const dedupeReason = "quality_score>evidence>source_weight>completeness"

var (
	noisePrefixExpr = regexp.MustCompile(`(?i)^(press release|breaking|update|exclusive)\s*[:\-]\s*`)
	nonTitleExpr    = regexp.MustCompile(`[^0-9a-z\x{4e00}-\x{9fff}]+`)
	cjkRunExpr      = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,}`)
	wsExpr          = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title, strips wire-service noise prefixes, and
// reduces it to alphanumerics and CJK ideographs with single spaces.
func NormalizeTitle(title string) string {
	t := strings.TrimSpace(strings.ToLower(title))
	t = noisePrefixExpr.ReplaceAllString(t, "")
	t = nonTitleExpr.ReplaceAllString(t, " ")
	return strings.TrimSpace(wsExpr.ReplaceAllString(t, " "))
}

// TokenizeTitle builds the similarity token set: normalized-title words of
// two or more runes, plus every contiguous CJK run of length two or more
// taken from the raw title.
func TokenizeTitle(title string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Split(NormalizeTitle(title), " ") {
		if utf8.RuneCountInString(tok) >= 2 {
			tokens[tok] = struct{}{}
		}
	}
	for _, run := range cjkRunExpr.FindAllString(title, -1) {
		tokens[run] = struct{}{}
	}
	return tokens
}

// JaccardTitle is the Jaccard similarity of two title token sets; 0 when
// either set is empty.
func JaccardTitle(a, b string) float64 {
	ta := TokenizeTitle(a)
	tb := TokenizeTitle(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Key derives the dedupe key for an item, first matching rule wins: the
// canonical URL, then host+path of the page URL, then the normalized title
// with domain and publish date as a last resort.
func Key(item domain.RawItem) string {
	if canonical := strings.TrimSpace(item.CanonicalURL); canonical != "" {
		return sha1Hex(canonical)
	}

	pageURL := item.PageURL()
	if pageURL != "" {
		if parsed, err := url.Parse(pageURL); err == nil && parsed.Host != "" && parsed.Path != "" {
			hostPath := strings.TrimSpace(strings.ToLower(parsed.Host)) + strings.TrimRight(parsed.Path, "/")
			if hostPath != "" {
				return sha1Hex(hostPath)
			}
		}
	}

	date := ""
	if item.HasPublishedAt() {
		date = item.PublishedAt.UTC().Format("2006-01-02")
	}
	return sha1Hex(fmt.Sprintf("%s|%s|%s", NormalizeTitle(item.Title), hostOf(pageURL), date))
}

// ClusterSummary is the per-cluster line of a dedupe report.
type ClusterSummary struct {
	StoryID         string   `json:"story_id"`
	ClusterSize     int      `json:"cluster_size"`
	CanonicalItemID string   `json:"canonical_item_id"`
	CanonicalTitle  string   `json:"canonical_title"`
	Key             string   `json:"key"`
	DroppedItemIDs  []string `json:"dropped_item_ids"`
}

// Report is the before/after audit of one dedupe pass. ItemsBefore always
// equals ItemsAfter + DedupedCount.
type Report struct {
	ItemsBefore  int              `json:"items_before"`
	ItemsAfter   int              `json:"items_after"`
	DedupedCount int              `json:"deduped_count"`
	Clusters     []ClusterSummary `json:"clusters"`
}

type keyedItem struct {
	domain.ScoredItem
	key string
}

// Dedupe clusters a scored batch by near-duplicate title/URL and collapses
// each cluster to its canonical story. The output is re-sorted descending by
// (quality score, evidence rank, source weight).
func Dedupe(items []domain.ScoredItem, cfg *config.ScoringConfig) ([]domain.Story, Report) {
	threshold := cfg.Threshold()
	report := Report{ItemsBefore: len(items), Clusters: []ClusterSummary{}}
	if len(items) == 0 {
		return []domain.Story{}, report
	}

	work := make([]keyedItem, 0, len(items))
	for _, it := range items {
		work = append(work, keyedItem{ScoredItem: it, key: Key(it.RawItem)})
	}

	var clusters [][]keyedItem
	for _, it := range work {
		placed := false
		for i := range clusters {
			head := clusters[i][0]
			if it.key == head.key || JaccardTitle(it.Title, head.Title) >= threshold {
				clusters[i] = append(clusters[i], it)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []keyedItem{it})
		}
	}

	stories := make([]domain.Story, 0, len(clusters))
	deduped := 0
	for idx, cluster := range clusters {
		primary, others := chooseCanonical(cluster)

		story := domain.Story{
			ScoredItem:     primary.ScoredItem,
			StoryID:        fmt.Sprintf("story-%04d-%s", idx+1, keyPrefix(primary.key)),
			DedupeKey:      primary.key,
			ClusterSize:    len(cluster),
			DedupedFromIDs: make([]string, 0, len(others)),
			OtherSources:   make([]domain.OtherSource, 0, len(others)),
			DedupeReason:   dedupeReason,
		}
		for _, other := range others {
			story.DedupedFromIDs = append(story.DedupedFromIDs, other.ItemID)
			story.OtherSources = append(story.OtherSources, domain.OtherSource{
				SourceName:  other.Source,
				URL:         other.PageURL(),
				PublishedAt: formatPublished(other.PublishedAt),
				Title:       other.Title,
			})
		}
		stories = append(stories, story)

		deduped += len(cluster) - 1
		report.Clusters = append(report.Clusters, ClusterSummary{
			StoryID:         story.StoryID,
			ClusterSize:     len(cluster),
			CanonicalItemID: primary.ItemID,
			CanonicalTitle:  primary.Title,
			Key:             primary.key,
			DroppedItemIDs:  append([]string(nil), story.DedupedFromIDs...),
		})
	}

	sort.SliceStable(stories, func(i, j int) bool {
		return rankLess(stories[j].ScoredItem, stories[i].ScoredItem)
	})

	report.ItemsAfter = len(stories)
	report.DedupedCount = deduped
	return stories, report
}

// chooseCanonical orders a cluster descending by (quality score, evidence
// rank, source weight, completeness rank); ties keep first-encountered order.
func chooseCanonical(cluster []keyedItem) (keyedItem, []keyedItem) {
	ranked := append([]keyedItem(nil), cluster...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if ar, br := a.EvidenceGrade.Rank(), b.EvidenceGrade.Rank(); ar != br {
			return ar > br
		}
		if a.SourceWeight != b.SourceWeight {
			return a.SourceWeight > b.SourceWeight
		}
		return CompletenessRank(a.ScoredItem) > CompletenessRank(b.ScoredItem)
	})
	return ranked[0], ranked[1:]
}

// CompletenessRank counts filled fields as the final canonical tie-break; a
// verified original-source link counts double.
func CompletenessRank(item domain.ScoredItem) int {
	rank := 0
	if strings.TrimSpace(item.Title) != "" {
		rank++
	}
	if strings.TrimSpace(item.SummaryText()) != "" {
		rank++
	}
	if item.HasPublishedAt() {
		rank++
	}
	if strings.TrimSpace(item.Source) != "" {
		rank++
	}
	if strings.TrimSpace(item.OriginalSourceURL) != "" {
		rank += 2
	}
	return rank
}

// rankLess orders by the batch-level sort key (quality, evidence, weight).
func rankLess(a, b domain.ScoredItem) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore < b.QualityScore
	}
	if ar, br := a.EvidenceGrade.Rank(), b.EvidenceGrade.Rank(); ar != br {
		return ar < br
	}
	return a.SourceWeight < b.SourceWeight
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ToLower(parsed.Host))
}

func formatPublished(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
