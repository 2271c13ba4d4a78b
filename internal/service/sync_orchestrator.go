package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncOptions controls which streams are pulled and how
type SyncOptions struct {
	LookbackDays    int
	ExtendedStreams bool
	MaxParallel     int
}

type streamFunc func(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error)

type stream struct {
	name     string
	optional bool
	run      streamFunc
}

// SyncOrchestrator pulls every stream of the lookback window and writes it
// through the MetricWriter. Streams are isolated: one failing stream does
// not stop the others.
type SyncOrchestrator struct {
	client  DataClient
	writer  *MetricWriter
	events  EventRecorder
	metrics *observability.SyncMetrics
	logger  *zap.Logger
	opts    SyncOptions
	now     func() time.Time
}

// NewSyncOrchestrator creates a new sync orchestrator
func NewSyncOrchestrator(
	client DataClient,
	writer *MetricWriter,
	events EventRecorder,
	metrics *observability.SyncMetrics,
	logger *zap.Logger,
	opts SyncOptions,
) *SyncOrchestrator {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}

	return &SyncOrchestrator{
		client:  client,
		writer:  writer,
		events:  events,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

func (o *SyncOrchestrator) streams() []stream {
	streams := []stream{
		{name: domain.StreamRecovery, run: o.syncRecovery},
		{name: domain.StreamSleep, run: o.syncSleep},
		{name: domain.StreamWorkout, run: o.syncWorkouts},
		{name: domain.StreamBody, optional: true, run: o.syncBody},
	}
	if o.opts.ExtendedStreams {
		streams = append(streams, stream{name: domain.StreamCycle, optional: true, run: o.syncCycles})
	}
	return streams
}

// Run syncs every stream for userID. When a mandatory stream fails the
// returned *domain.SyncError carries the report of all attempted streams;
// optional stream failures only show up in the report.
func (o *SyncOrchestrator) Run(ctx context.Context, userID, accessToken string) (*domain.SyncReport, error) {
	started := o.now()
	window := domain.LookbackWindow(started, o.opts.LookbackDays)
	streams := o.streams()
	results := make([]domain.StreamResult, len(streams))

	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallel)
	for i, s := range streams {
		g.Go(func() error {
			results[i] = o.runStream(ctx, s, userID, accessToken, window)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewSyncReport(window)
	for _, res := range results {
		report.Add(res)
	}

	o.metrics.SyncDuration.Record(ctx, time.Since(started).Seconds())

	failed := report.FailedStreams(true)
	o.recordOutcome(ctx, userID, report, failed)

	if len(failed) > 0 {
		return report, &domain.SyncError{Failed: failed, Report: report}
	}

	return report, nil
}

func (o *SyncOrchestrator) runStream(ctx context.Context, s stream, userID, accessToken string, window domain.TimeWindow) domain.StreamResult {
	res, err := s.run(ctx, userID, accessToken, window)
	res.Stream = s.name
	res.Optional = s.optional

	attrs := metric.WithAttributes(attribute.String("stream", s.name))
	if res.Saved > 0 {
		o.metrics.RecordsSaved.Add(ctx, int64(res.Saved), attrs)
	}

	if err != nil {
		res.Error = err.Error()
		o.metrics.StreamFailures.Add(ctx, 1, attrs)

		log := o.logger.Error
		if s.optional {
			log = o.logger.Warn
		}
		log("Stream sync failed",
			zap.String("user_id", userID),
			zap.String("stream", s.name),
			zap.Int("saved", res.Saved),
			zap.Error(err),
		)
		return res
	}

	o.logger.Debug("Stream synced",
		zap.String("user_id", userID),
		zap.String("stream", s.name),
		zap.Int("fetched", res.Fetched),
		zap.Int("skipped", res.Skipped),
		zap.Int("saved", res.Saved),
	)

	return res
}

func (o *SyncOrchestrator) recordOutcome(ctx context.Context, userID string, report *domain.SyncReport, failedMandatory []string) {
	status := domain.EventStatusSuccess
	switch {
	case len(failedMandatory) > 0:
		status = domain.EventStatusFailure
	case len(report.FailedStreams(false)) > 0:
		status = domain.EventStatusPartial
	}

	details := map[string]any{
		"counts":      report.Counts(),
		"total_saved": report.TotalSaved,
	}
	if failed := report.FailedStreams(false); len(failed) > 0 {
		details["failed_streams"] = failed
	}

	o.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    userID,
		EventType: domain.EventSync,
		Status:    status,
		Details:   details,
	})

	o.logger.Info("Sync finished",
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.Int("total_saved", report.TotalSaved),
	)
}
