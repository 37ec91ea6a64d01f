package interfaces

import (
	"context"

	"github.com/ternarybob/curia/internal/models"
)

// MetricsService records sync throughput. Implementations must be
// thread-safe and must never back-pressure the pipelines.
type MetricsService interface {
	RecordEntitySynced(ctx context.Context, kind models.EntityKind, sourceName string)
	RecordEntitiesBatch(ctx context.Context, sourceName string, n int)
	Shutdown(ctx context.Context) error
}
