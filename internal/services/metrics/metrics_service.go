package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// Service records sync throughput through OpenTelemetry counters. The
// default reader is a stdout exporter so `curia sync -v` runs show their
// numbers without any collector infrastructure.
type Service struct {
	provider *sdkmetric.MeterProvider
	synced   metric.Int64Counter
	batches  metric.Int64Counter
}

// NewService builds the metrics service. stdout selects the periodic stdout
// exporter; otherwise counters aggregate in-process only and surface via a
// configured OTEL reader, if any.
func NewService(stdout bool) (*Service, error) {
	var options []sdkmetric.Option
	if stdout {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		options = append(options, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	provider := sdkmetric.NewMeterProvider(options...)
	meter := provider.Meter("curia/sync")

	synced, err := meter.Int64Counter("curia.entities.synced",
		metric.WithDescription("Entities upserted into the mirror"))
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64Counter("curia.entities.batched",
		metric.WithDescription("Entities processed in page batches"))
	if err != nil {
		return nil, err
	}

	return &Service{provider: provider, synced: synced, batches: batches}, nil
}

func (s *Service) RecordEntitySynced(ctx context.Context, kind models.EntityKind, sourceName string) {
	s.synced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("source", sourceName),
	))
}

func (s *Service) RecordEntitiesBatch(ctx context.Context, sourceName string, n int) {
	s.batches.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("source", sourceName),
	))
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

// Noop is a metrics service that records nothing; used when metrics are
// disabled in config.
type Noop struct{}

func (Noop) RecordEntitySynced(context.Context, models.EntityKind, string) {}
func (Noop) RecordEntitiesBatch(context.Context, string, int)              {}
func (Noop) Shutdown(context.Context) error                                { return nil }

var _ interfaces.MetricsService = (*Service)(nil)
var _ interfaces.MetricsService = Noop{}
