// Package sweeper периодически переводит в failed замеры, зависшие в segmenting
// (например, после остановки процесса посреди прогона).
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/carton-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/carton-tracker/internal/metrics"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Repository находит и закрывает зависшие замеры.
type Repository interface {
	FailStaleSegmenting(ctx context.Context, olderThan time.Duration) ([]*models.Measurement, error)
}

// Publisher отправляет события смены состояния.
type Publisher interface {
	Publish(ctx context.Context, event models.MeasurementEvent) error
}

// Recorder учитывает закрытые замеры.
type Recorder interface {
	SegmentationRun(outcome string)
}

// Service закрывает зависшие замеры.
type Service struct {
	repo       Repository
	publisher  Publisher
	recorder   Recorder
	log        *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// New создает фоновую задачу.
func New(repo Repository, publisher Publisher, recorder Recorder, log *slog.Logger, interval, staleAfter time.Duration) *Service {
	return &Service{
		repo:       repo,
		publisher:  publisher,
		recorder:   recorder,
		log:        log,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("starting stale segmentation sweeper",
		slog.Duration("interval", s.interval),
		slog.Duration("stale_after", s.staleAfter))

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stale segmentation sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход и возвращает число закрытых замеров.
func (s *Service) Sweep(ctx context.Context) int {
	const op = "sweeper.Sweep"

	stale, err := s.repo.FailStaleSegmenting(ctx, s.staleAfter)
	if err != nil {
		s.log.Error("failed to sweep stale measurements", sl.Op(op), sl.Err(err))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	s.log.Warn("stale measurements marked failed", sl.Op(op), slog.Int("count", len(stale)))
	for _, m := range stale {
		s.recorder.SegmentationRun(metrics.OutcomeStale)
		event := models.MeasurementEvent{
			MeasurementID: m.ID,
			UserUID:       m.UserUID,
			Status:        models.StatusFailed,
			At:            s.now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish measurement event",
				slog.String("measurement_id", m.ID), sl.Err(err))
		}
	}
	return len(stale)
}
