package app

import (
	"context"
	"fmt"
	"log/slog"

	"ivdradar/internal/config"
	"ivdradar/internal/infrastructure/batchfile"
	"ivdradar/internal/infrastructure/storage"
	"ivdradar/internal/logging"
	"ivdradar/internal/ports"
	"ivdradar/internal/usecase"
)

// Application wires configuration to the curation pipeline and owns the
// lifecycle of its collaborators.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	closeFns []func() error
}

// Options adjust how an Application is assembled.
type Options struct {
	// DryRun skips the story repository entirely: no cross-run dedupe and
	// no persistence.
	DryRun bool
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if cfg.Input.BatchPath == "" {
		return nil, fmt.Errorf("no input batch configured")
	}
	source := batchfile.New(cfg.Input.BatchPath)

	a := &Application{cfg: cfg, logger: baseLogger}

	var repository ports.StoryRepository
	if !opts.DryRun && cfg.Database.DSN != "" {
		db, err := storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect feed store: %w", err)
		}
		a.closeFns = append(a.closeFns, db.Close)
		repository = storage.NewPostgresRepository(db)
	}

	scoringCfg := config.LoadScoring(cfg.Rules.ScoringPath, baseLogger.With("component", "config"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: repository,
		Scoring:    scoringCfg,
		TopN:       cfg.Digest.TopN,
		Logger:     baseLogger.With("component", "pipeline"),
	})
	return a, nil
}

// Pipeline exposes the wired curation pipeline.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Close releases held resources.
func (a *Application) Close() error {
	var first error
	for _, fn := range a.closeFns {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
