package classify

import (
	"net/url"
	"regexp"
	"strings"

	"ivdradar/internal/config"
	"ivdradar/internal/domain"
)

// redirectParamKeys are query keys aggregators use to carry the publisher
// link inside a redirect URL, checked in order.
var redirectParamKeys = []string{"url", "u", "target", "source", "article_url"}

var urlExpr = regexp.MustCompile(`(?i)https?://[^\s\])"'>]+`)

// OriginalSourceURL recovers the true publisher link for an item. It first
// checks the link's query string for a redirect parameter with an http(s)
// value, then falls back to the first embedded URL in the summary text that
// differs from the link itself. Returns "" when nothing usable is found.
func OriginalSourceURL(link, summary string) string {
	lk := strings.TrimSpace(link)
	if lk == "" {
		return ""
	}

	if parsed, err := url.Parse(lk); err == nil {
		query := parsed.Query()
		for _, key := range redirectParamKeys {
			vals := query[key]
			if len(vals) == 0 {
				continue
			}
			// Aggregators often double-encode the target; decode one
			// extra level on top of the query parsing.
			v := vals[0]
			if dec, err := url.QueryUnescape(v); err == nil {
				v = dec
			}
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
				return v
			}
		}
	}

	for _, u := range urlExpr.FindAllString(summary, -1) {
		if u != lk {
			return u
		}
	}
	return ""
}

// Domain extracts the lowercased host of a URL, or "" when unparsable.
func Domain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ToLower(parsed.Host))
}

// UpgradeEvidenceByOriginal raises an item's evidence grade when a verified
// original-source link is present. Whitelisted regulatory/journal domains
// force A, company/preprint domains force B, and any other original link is
// worth at least C. The grade never moves downward here.
func UpgradeEvidenceByOriginal(grade domain.Grade, originalURL string, cfg *config.ScoringConfig) (domain.Grade, string) {
	if strings.TrimSpace(originalURL) == "" {
		return grade, ""
	}
	if cfg == nil {
		cfg = config.DefaultScoring()
	}

	host := Domain(originalURL)
	hit := func(group string) bool {
		for _, entry := range cfg.DomainWhitelist[group] {
			if entry != "" && strings.Contains(host, strings.ToLower(entry)) {
				return true
			}
		}
		return false
	}

	switch {
	case hit("regulatory") || hit("journal"):
		return domain.GradeA, "original_source_url_whitelist_A"
	case hit("company") || hit("preprint"):
		return domain.GradeB, "original_source_url_whitelist_B"
	case grade.Rank() < domain.GradeC.Rank():
		return domain.GradeC, "original_source_url_upgrade_to_C"
	default:
		return grade, "original_source_url_detected"
	}
}
