package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestLoadScoringDefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	got := LoadScoring("", nil)
	if diff := cmp.Diff(DefaultScoring(), got); diff != "" {
		t.Fatalf("empty path must yield defaults (-want +got):\n%s", diff)
	}

	got = LoadScoring(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if diff := cmp.Diff(DefaultScoring(), got); diff != "" {
		t.Fatalf("missing file must yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadScoringDefaultsWhenUnparsable(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "base_weight_by_tag: [this is not a map\n")
	got := LoadScoring(path, nil)
	if diff := cmp.Diff(DefaultScoring(), got); diff != "" {
		t.Fatalf("broken YAML must yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadScoringOverlayMergesPerKey(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
base_weight_by_tag:
  media: 0.55
  newsletter: 0.60
trust_tier_adjust:
  C: -0.20
source_weight:
  max: 1.20
similarity_thresholds:
  title_jaccard: 0.88
signal_rules:
  yellow_keywords: ["pilot"]
`)
	got := LoadScoring(path, nil)

	if got.BaseWeightByTag["media"] != 0.55 {
		t.Fatalf("media weight = %v, want overridden 0.55", got.BaseWeightByTag["media"])
	}
	if got.BaseWeightByTag["regulatory"] != 1.00 {
		t.Fatalf("untouched keys must survive, regulatory = %v", got.BaseWeightByTag["regulatory"])
	}
	if got.BaseWeightByTag["newsletter"] != 0.60 {
		t.Fatalf("new map keys must be added")
	}
	if got.TrustTierAdjust["C"] != -0.20 || got.TrustTierAdjust["A"] != 0.10 {
		t.Fatalf("trust tier merge wrong: %v", got.TrustTierAdjust)
	}
	if got.SourceWeightMax != 1.20 || got.SourceWeightMin != 0.10 {
		t.Fatalf("scalar overlay wrong: min %v max %v", got.SourceWeightMin, got.SourceWeightMax)
	}
	if got.Threshold() != 0.88 {
		t.Fatalf("threshold = %v, want 0.88", got.Threshold())
	}

	// Keyword lists replace wholesale, not merge.
	if diff := cmp.Diff([]string{"pilot"}, got.SignalRules.YellowKeywords); diff != "" {
		t.Fatalf("yellow keywords (-want +got):\n%s", diff)
	}
	// Untouched lists keep the defaults.
	if len(got.SignalRules.RedKeywords) == 0 {
		t.Fatalf("red keywords must keep defaults")
	}
}

func TestLoadScoringExplicitZeroOverrides(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
recency_points:
  lt_24h: 0
penalties:
  very_short_duplicate_like: 0
`)
	got := LoadScoring(path, nil)
	if got.Recency.LT24h != 0 {
		t.Fatalf("explicit zero must override, got %v", got.Recency.LT24h)
	}
	if got.Penalties.VeryShortDuplicateLike != 0 {
		t.Fatalf("explicit zero penalty must override, got %v", got.Penalties.VeryShortDuplicateLike)
	}
	// Absent siblings keep their defaults.
	if got.Recency.D1to3 != 10 || got.Penalties.AggregatorWithoutOriginal != -12 {
		t.Fatalf("absent keys must keep defaults: %+v %+v", got.Recency, got.Penalties)
	}
}

func TestLoadScoringQuotaOrderPreserved(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
quotas:
  company:
    min: 2
  weekly_feature:
    min: 1
`)
	got := LoadScoring(path, nil)

	var buckets []string
	for _, q := range got.Quotas {
		buckets = append(buckets, q.Bucket)
	}
	want := []string{"regulatory", "journal_preprint", "company", "media", "aggregator", "weekly_feature"}
	if diff := cmp.Diff(want, buckets); diff != "" {
		t.Fatalf("quota order (-want +got):\n%s", diff)
	}

	company, ok := got.QuotaFor("company")
	if !ok || company.Min == nil || *company.Min != 2 {
		t.Fatalf("company quota not updated in place: %+v", company)
	}
	if company.Max != nil {
		t.Fatalf("unset bounds must stay unset: %+v", company)
	}
}

func TestDefaultScoringReturnsFreshCopies(t *testing.T) {
	t.Parallel()

	a := DefaultScoring()
	a.BaseWeightByTag["media"] = 0.01
	a.Quotas[0].Min = intPtr(99)
	a.SignalRules.RedKeywords[0] = "mutated"

	b := DefaultScoring()
	if b.BaseWeightByTag["media"] == 0.01 {
		t.Fatalf("map state leaked between DefaultScoring calls")
	}
	if *b.Quotas[0].Min == 99 {
		t.Fatalf("quota state leaked between DefaultScoring calls")
	}
	if b.SignalRules.RedKeywords[0] == "mutated" {
		t.Fatalf("keyword list leaked between DefaultScoring calls")
	}
}

func TestThresholdFallback(t *testing.T) {
	t.Parallel()

	cfg := DefaultScoring()
	cfg.TitleJaccard = 0
	if got := cfg.Threshold(); got != 0.92 {
		t.Fatalf("threshold = %v, want fallback 0.92", got)
	}
	var nilCfg *ScoringConfig
	if got := nilCfg.Threshold(); got != 0.92 {
		t.Fatalf("nil receiver threshold = %v, want 0.92", got)
	}
}
