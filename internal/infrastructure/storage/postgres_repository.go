package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ivdradar/internal/domain"
	"ivdradar/internal/ports"
)

// PostgresRepository persists selected digest stories into Postgres.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.StoryRepository = (*PostgresRepository)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// AlreadySeen returns a map with item ids that already exist in storage.
func (r *PostgresRepository) AlreadySeen(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := r.sb.
		Select("item_id").
		From("digest_stories").
		Where(sq.Expr("item_id = ANY(?)", pq.StringArray(ids))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// SaveStories upserts the selected story snapshots for one run.
func (r *PostgresRepository) SaveStories(ctx context.Context, runAt time.Time, stories []domain.Story) error {
	if r.db == nil || len(stories) == 0 {
		return nil
	}

	builder := r.sb.
		Insert("digest_stories").
		Columns(
			"item_id", "story_id", "title", "url", "original_source_url",
			"source_name", "source_bucket", "evidence_grade", "signal_level",
			"quality_score", "event_type", "cluster_size", "deduped_from_ids",
			"published_at", "run_at",
		).
		Suffix(`ON CONFLICT (item_id) DO UPDATE
                SET story_id = EXCLUDED.story_id,
                    quality_score = EXCLUDED.quality_score,
                    cluster_size = EXCLUDED.cluster_size,
                    deduped_from_ids = EXCLUDED.deduped_from_ids,
                    run_at = EXCLUDED.run_at`)

	for _, story := range stories {
		var publishedAt any
		if story.HasPublishedAt() {
			publishedAt = story.PublishedAt.UTC()
		}
		builder = builder.Values(
			story.ItemID,
			story.StoryID,
			story.Title,
			story.PageURL(),
			story.OriginalSourceURL,
			story.Source,
			string(story.SourceBucket),
			string(story.EvidenceGrade),
			string(story.SignalLevel),
			story.QualityScore,
			story.EventType,
			story.ClusterSize,
			pq.StringArray(story.DedupedFromIDs),
			publishedAt,
			runAt.UTC(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert stories: %w", err)
	}
	return nil
}
