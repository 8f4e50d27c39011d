package config

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// QuotaRule is one per-bucket selection constraint. Rule order matters: the
// minimum-quota phase of selection walks rules in this order, which decides
// which buckets win when the digest budget is small.
type QuotaRule struct {
	Bucket string `json:"bucket"`
	Min    *int   `json:"min,omitempty"`
	Max    *int   `json:"max,omitempty"`
}

// RecencyPoints maps article age buckets to score contributions.
type RecencyPoints struct {
	LT24h  float64 `yaml:"lt_24h" json:"lt_24h"`
	D1to3  float64 `yaml:"d1_3" json:"d1_3"`
	D3to7  float64 `yaml:"d3_7" json:"d3_7"`
	D7to14 float64 `yaml:"d7_14" json:"d7_14"`
	GT14   float64 `yaml:"gt_14" json:"gt_14"`
}

// CompletenessPoints rewards presence of item fields, capped at Max.
type CompletenessPoints struct {
	Summary           float64 `yaml:"summary" json:"summary"`
	PublishedAt       float64 `yaml:"published_at" json:"published_at"`
	SourceName        float64 `yaml:"source_name" json:"source_name"`
	OriginalSourceURL float64 `yaml:"original_source_url" json:"original_source_url"`
	Max               float64 `yaml:"max" json:"max"`
}

// PenaltyPoints are the named negative score contributions.
type PenaltyPoints struct {
	AggregatorWithoutOriginal float64 `yaml:"aggregator_without_original" json:"aggregator_without_original"`
	VeryShortDuplicateLike    float64 `yaml:"very_short_duplicate_like" json:"very_short_duplicate_like"`
}

// SignalRules holds the keyword lists gating the 红/橙/黄 signal levels.
type SignalRules struct {
	RedKeywords    []string `yaml:"red_keywords" json:"red_keywords"`
	OrangeKeywords []string `yaml:"orange_keywords" json:"orange_keywords"`
	YellowKeywords []string `yaml:"yellow_keywords" json:"yellow_keywords"`
}

// ScoringConfig is the fully resolved curation configuration. It is built by
// overlaying an optional rules document on the built-in defaults and is
// read-only afterwards.
type ScoringConfig struct {
	BaseWeightByTag    map[string]float64
	TrustTierAdjust    map[string]float64
	SourceWeightMin    float64
	SourceWeightMax    float64
	EvidencePoints     map[string]float64
	SourcePointsFactor float64
	Recency            RecencyPoints
	Completeness       CompletenessPoints
	Penalties          PenaltyPoints
	SignalBonus        map[string]float64
	SignalRules        SignalRules
	DomainWhitelist    map[string][]string
	Quotas             []QuotaRule
	TitleJaccard       float64
}

func intPtr(v int) *int { return &v }

// DefaultScoring returns the built-in configuration. Every call returns a
// fresh copy so a resolved config is never shared with later loads.
func DefaultScoring() *ScoringConfig {
	return &ScoringConfig{
		BaseWeightByTag: map[string]float64{
			"regulatory":      1.00,
			"journal":         0.95,
			"company":         0.90,
			"market_research": 0.85,
			"thinktank":       0.85,
			"media":           0.70,
			"aggregator":      0.30,
		},
		TrustTierAdjust: map[string]float64{"A": 0.10, "B": 0.00, "C": -0.10},
		SourceWeightMin: 0.10,
		SourceWeightMax: 1.10,
		EvidencePoints:  map[string]float64{"A": 45, "B": 35, "C": 25, "D": 10},

		SourcePointsFactor: 30,
		Recency:            RecencyPoints{LT24h: 15, D1to3: 10, D3to7: 6, D7to14: 2, GT14: 0},
		Completeness: CompletenessPoints{
			Summary:           3,
			PublishedAt:       3,
			SourceName:        2,
			OriginalSourceURL: 6,
			Max:               10,
		},
		Penalties: PenaltyPoints{
			AggregatorWithoutOriginal: -12,
			VeryShortDuplicateLike:    -6,
		},
		SignalBonus: map[string]float64{"红": 6, "橙": 3, "黄": 1, "灰": 0},
		SignalRules: SignalRules{
			RedKeywords: []string{
				"监管", "准入", "召回", "警示", "指南",
				"ivdr", "who prequalification", "pq",
				"fda", "pmda", "nmpa", "mhra",
				"warning", "recall", "guidance", "field safety",
				"m&a", "acquisition",
			},
			OrangeKeywords: []string{
				"融资", "并购", "ipo", "上市", "产品发布", "多中心", "临床", "指南引用",
				"funding", "partnership", "trial", "validation", "approval",
			},
			YellowKeywords: []string{
				"趋势", "合作", "渠道", "迭代",
				"industry", "trend", "launch", "update", "collaboration",
			},
		},
		DomainWhitelist: map[string][]string{
			"regulatory": {
				"fda.gov", "europa.eu", "ema.europa.eu", "imdrf.org", "who.int",
				"nmpa.gov.cn", "pmda.go.jp", "mhlw.go.jp", "tga.gov.au",
				"hsa.gov.sg", "mfds.go.kr", "gov.uk",
			},
			"journal": {
				"nejm.org", "thelancet.com", "nature.com", "science.org",
				"pubmed.ncbi.nlm.nih.gov", "europepmc.org",
			},
			"company": {
				"roche.com", "abbott.com", "siemens-healthineers.com", "danaher.com",
				"qiagen.com", "illumina.com", "thermofisher.com", "hologic.com",
			},
			"preprint": {"medrxiv.org", "biorxiv.org"},
		},
		Quotas: []QuotaRule{
			{Bucket: "regulatory", Min: intPtr(4)},
			{Bucket: "journal_preprint", Min: intPtr(4)},
			{Bucket: "company", Min: intPtr(4)},
			{Bucket: "media", Max: intPtr(14)},
			{Bucket: "aggregator", Max: intPtr(2)},
		},
		TitleJaccard: 0.92,
	}
}

// QuotaFor returns the rule configured for a quota bucket, if any.
func (c *ScoringConfig) QuotaFor(bucket string) (QuotaRule, bool) {
	for _, q := range c.Quotas {
		if q.Bucket == bucket {
			return q, true
		}
	}
	return QuotaRule{}, false
}

// Threshold returns the title-similarity threshold, falling back to the
// default when the configured value is unusable.
func (c *ScoringConfig) Threshold() float64 {
	if c == nil || c.TitleJaccard <= 0 {
		return 0.92
	}
	return c.TitleJaccard
}

// scoringDocument is the YAML-facing overlay shape. Scalar fields are
// pointers so that absent keys are distinguishable from explicit zeros.
type scoringDocument struct {
	BaseWeightByTag map[string]float64 `yaml:"base_weight_by_tag"`
	TrustTierAdjust map[string]float64 `yaml:"trust_tier_adjust"`
	SourceWeight    struct {
		Min *float64 `yaml:"min"`
		Max *float64 `yaml:"max"`
	} `yaml:"source_weight"`
	EvidencePoints     map[string]float64 `yaml:"evidence_points"`
	SourcePointsFactor *float64           `yaml:"source_points_factor"`
	RecencyPoints      struct {
		LT24h  *float64 `yaml:"lt_24h"`
		D1to3  *float64 `yaml:"d1_3"`
		D3to7  *float64 `yaml:"d3_7"`
		D7to14 *float64 `yaml:"d7_14"`
		GT14   *float64 `yaml:"gt_14"`
	} `yaml:"recency_points"`
	CompletenessPoints struct {
		Summary           *float64 `yaml:"summary"`
		PublishedAt       *float64 `yaml:"published_at"`
		SourceName        *float64 `yaml:"source_name"`
		OriginalSourceURL *float64 `yaml:"original_source_url"`
		Max               *float64 `yaml:"max"`
	} `yaml:"completeness_points"`
	Penalties struct {
		AggregatorWithoutOriginal *float64 `yaml:"aggregator_without_original"`
		VeryShortDuplicateLike    *float64 `yaml:"very_short_duplicate_like"`
	} `yaml:"penalties"`
	SignalBonus map[string]float64 `yaml:"signal_bonus"`
	SignalRules struct {
		RedKeywords    []string `yaml:"red_keywords"`
		OrangeKeywords []string `yaml:"orange_keywords"`
		YellowKeywords []string `yaml:"yellow_keywords"`
	} `yaml:"signal_rules"`
	DomainWhitelist      map[string][]string `yaml:"domain_whitelist"`
	Quotas               yaml.Node           `yaml:"quotas"`
	SimilarityThresholds struct {
		TitleJaccard *float64 `yaml:"title_jaccard"`
	} `yaml:"similarity_thresholds"`
}

// LoadScoring resolves the scoring configuration from an optional rules file.
// Any failure (missing file, parse error, wrong shape) degrades to the
// built-in defaults; the loader never returns an error by policy, so a
// curation run always has a usable config.
func LoadScoring(path string, logger *slog.Logger) *ScoringConfig {
	cfg := DefaultScoring()
	if path == "" {
		return cfg
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		warn(logger, "scoring rules unreadable, using defaults", "path", path, "error", err)
		return cfg
	}

	var doc scoringDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		warn(logger, "scoring rules unparsable, using defaults", "path", path, "error", err)
		return cfg
	}

	cfg.merge(doc)
	return cfg
}

// merge overlays a parsed rules document on the defaults: map sections merge
// per key, keyword lists replace wholesale, scalars replace when present.
func (c *ScoringConfig) merge(doc scoringDocument) {
	mergeFloats(c.BaseWeightByTag, doc.BaseWeightByTag)
	mergeFloats(c.TrustTierAdjust, doc.TrustTierAdjust)
	mergeFloats(c.EvidencePoints, doc.EvidencePoints)
	mergeFloats(c.SignalBonus, doc.SignalBonus)
	for bucket, domains := range doc.DomainWhitelist {
		c.DomainWhitelist[bucket] = append([]string(nil), domains...)
	}

	setFloat(&c.SourceWeightMin, doc.SourceWeight.Min)
	setFloat(&c.SourceWeightMax, doc.SourceWeight.Max)
	setFloat(&c.SourcePointsFactor, doc.SourcePointsFactor)
	setFloat(&c.TitleJaccard, doc.SimilarityThresholds.TitleJaccard)

	setFloat(&c.Recency.LT24h, doc.RecencyPoints.LT24h)
	setFloat(&c.Recency.D1to3, doc.RecencyPoints.D1to3)
	setFloat(&c.Recency.D3to7, doc.RecencyPoints.D3to7)
	setFloat(&c.Recency.D7to14, doc.RecencyPoints.D7to14)
	setFloat(&c.Recency.GT14, doc.RecencyPoints.GT14)

	setFloat(&c.Completeness.Summary, doc.CompletenessPoints.Summary)
	setFloat(&c.Completeness.PublishedAt, doc.CompletenessPoints.PublishedAt)
	setFloat(&c.Completeness.SourceName, doc.CompletenessPoints.SourceName)
	setFloat(&c.Completeness.OriginalSourceURL, doc.CompletenessPoints.OriginalSourceURL)
	setFloat(&c.Completeness.Max, doc.CompletenessPoints.Max)

	setFloat(&c.Penalties.AggregatorWithoutOriginal, doc.Penalties.AggregatorWithoutOriginal)
	setFloat(&c.Penalties.VeryShortDuplicateLike, doc.Penalties.VeryShortDuplicateLike)

	if doc.SignalRules.RedKeywords != nil {
		c.SignalRules.RedKeywords = doc.SignalRules.RedKeywords
	}
	if doc.SignalRules.OrangeKeywords != nil {
		c.SignalRules.OrangeKeywords = doc.SignalRules.OrangeKeywords
	}
	if doc.SignalRules.YellowKeywords != nil {
		c.SignalRules.YellowKeywords = doc.SignalRules.YellowKeywords
	}

	c.mergeQuotas(doc.Quotas)
}

// mergeQuotas overlays quota rules while preserving order: existing buckets
// are updated in place, new buckets append in document order.
func (c *ScoringConfig) mergeQuotas(node yaml.Node) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		bucket := node.Content[i].Value
		var bounds struct {
			Min *int `yaml:"min"`
			Max *int `yaml:"max"`
		}
		if err := node.Content[i+1].Decode(&bounds); err != nil {
			continue
		}

		merged := false
		for j := range c.Quotas {
			if c.Quotas[j].Bucket != bucket {
				continue
			}
			if bounds.Min != nil {
				c.Quotas[j].Min = bounds.Min
			}
			if bounds.Max != nil {
				c.Quotas[j].Max = bounds.Max
			}
			merged = true
			break
		}
		if !merged {
			c.Quotas = append(c.Quotas, QuotaRule{Bucket: bucket, Min: bounds.Min, Max: bounds.Max})
		}
	}
}

func mergeFloats(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] = v
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func warn(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
