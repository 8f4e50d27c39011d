package ports

import (
	"context"
	"time"

	"ivdradar/internal/domain"
)

// ItemSource supplies the raw item batch to curate, together with the source
// metadata it was collected under.
type ItemSource interface {
	Fetch(ctx context.Context) (domain.Batch, error)
}

// StoryRepository persists selected stories and remembers which item ids
// already appeared in earlier digests.
type StoryRepository interface {
	AlreadySeen(ctx context.Context, ids []string) (map[string]bool, error)
	SaveStories(ctx context.Context, runAt time.Time, stories []domain.Story) error
}
