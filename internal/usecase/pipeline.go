package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ivdradar/internal/config"
	"ivdradar/internal/dedupe"
	"ivdradar/internal/domain"
	"ivdradar/internal/ports"
	"ivdradar/internal/scoring"
	"ivdradar/internal/selection"
)

// PipelineDeps wires the collaborators into the curation pipeline. Source is
// required; Repository is optional (dry runs score and select without
// persistence or cross-run dedupe).
type PipelineDeps struct {
	Source     ports.ItemSource
	Repository ports.StoryRepository
	Scoring    *config.ScoringConfig
	TopN       int
	Logger     *slog.Logger
}

// Pipeline runs one curation pass: score, dedupe, select, persist.
type Pipeline struct {
	source     ports.ItemSource
	repository ports.StoryRepository
	scorer     *scoring.Scorer
	cfg        *config.ScoringConfig
	topN       int
	logger     *slog.Logger
}

// RunReport is the full audit output of one pass.
type RunReport struct {
	ItemsFetched int                 `json:"items_fetched"`
	SkippedSeen  int                 `json:"skipped_seen"`
	Scored       []domain.ScoredItem `json:"scored"`
	Dedupe       dedupe.Report       `json:"dedupe"`
	Selection    selection.Result    `json:"selection"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	cfg := deps.Scoring
	if cfg == nil {
		cfg = config.DefaultScoring()
	}
	topN := deps.TopN
	if topN <= 0 {
		topN = 20
	}
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		scorer:     scoring.NewScorer(cfg),
		cfg:        cfg,
		topN:       topN,
		logger:     deps.Logger,
	}
}

// Run executes one curation pass at the given logical time.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*RunReport, error) {
	if p.source == nil {
		return nil, fmt.Errorf("item source is not configured")
	}

	batch, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}
	report := &RunReport{ItemsFetched: len(batch.Items)}

	batch.Items, report.SkippedSeen, err = p.dropSeen(ctx, batch.Items)
	if err != nil {
		return nil, err
	}

	report.Scored = p.scorer.ScoreBatch(batch, now)
	p.debug("batch scored", "items", len(report.Scored), "skipped_seen", report.SkippedSeen)

	stories, dedupeReport := dedupe.Dedupe(report.Scored, p.cfg)
	report.Dedupe = dedupeReport
	p.debug("batch deduped", "before", dedupeReport.ItemsBefore, "after", dedupeReport.ItemsAfter)

	report.Selection = selection.Select(stories, p.topN, p.cfg)
	p.debug("selection done", "selected", report.Selection.Summary.SelectedCount, "dropped", len(report.Selection.Summary.Dropped))

	if p.repository != nil && len(report.Selection.Stories) > 0 {
		if err := p.repository.SaveStories(ctx, now, report.Selection.Stories); err != nil {
			return nil, fmt.Errorf("persist stories: %w", err)
		}
	}

	return report, nil
}

// dropSeen removes items whose ids already appeared in an earlier digest.
func (p *Pipeline) dropSeen(ctx context.Context, items []domain.RawItem) ([]domain.RawItem, int, error) {
	if p.repository == nil || len(items) == 0 {
		return items, 0, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = scoring.ItemID(item)
	}
	seen, err := p.repository.AlreadySeen(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load seen ids: %w", err)
	}

	fresh := make([]domain.RawItem, 0, len(items))
	skipped := 0
	for i, item := range items {
		if seen[ids[i]] {
			skipped++
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, skipped, nil
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
