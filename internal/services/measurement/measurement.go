// Package measurement содержит конечный автомат замера коробки:
// создание, чтение и запуск сегментации на внешнем устройстве.
package measurement

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/carton-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/carton-tracker/internal/metrics"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
	"github.com/magabrotheeeer/carton-tracker/internal/storage/repository"
)

const (
	msgNotFound   = "Measurement not found"
	msgNotPending = "Measurement is not pending"
)

// Repository определяет методы хранилища замеров.
type Repository interface {
	// CreateMeasurement сохраняет новый замер.
	CreateMeasurement(ctx context.Context, m models.Measurement) error
	// GetMeasurement возвращает замер по ID.
	GetMeasurement(ctx context.Context, id string) (*models.Measurement, error)
	// ListMeasurements возвращает замеры пользователя, новые первыми.
	ListMeasurements(ctx context.Context, userUID string) ([]*models.Measurement, error)
	// BeginSegmentation атомарно переводит замер владельца из pending в segmenting.
	BeginSegmentation(ctx context.Context, id, userUID string) (bool, error)
	// CompleteMeasurement сохраняет результат и переводит замер в completed.
	CompleteMeasurement(ctx context.Context, id string, res models.SegmentationResult) error
	// FailMeasurement переводит замер в failed.
	FailMeasurement(ctx context.Context, id string) error
	// CountByStatus считает замеры пользователя по состояниям.
	CountByStatus(ctx context.Context, userUID string) (map[models.Status]int, error)
}

// Device запускает сегментацию на внешнем устройстве.
type Device interface {
	Run(ctx context.Context, measurementID string) (*models.SegmentationResult, error)
}

// Publisher отправляет события смены состояния.
type Publisher interface {
	Publish(ctx context.Context, event models.MeasurementEvent) error
}

// Recorder учитывает метрики жизненного цикла.
type Recorder interface {
	MeasurementCreated()
	SegmentationRun(outcome string)
}

// Service реализует жизненный цикл замера.
type Service struct {
	log       *slog.Logger
	repo      Repository
	device    Device
	publisher Publisher
	recorder  Recorder
	newID     func() string
	now       func() time.Time
}

// New создает сервис замеров.
func New(log *slog.Logger, repo Repository, device Device, publisher Publisher, recorder Recorder) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		device:    device,
		publisher: publisher,
		recorder:  recorder,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Create создает замер в состоянии pending без результатов.
func (s *Service) Create(ctx context.Context, userUID string) (*models.Measurement, error) {
	const op = "measurement.Create"

	m := models.Measurement{
		ID:        s.newID(),
		UserUID:   userUID,
		Status:    models.StatusPending,
		Images:    []string{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateMeasurement(ctx, m); err != nil {
		s.log.Error("failed to create measurement", sl.Op(op), sl.Err(err))
		return nil, apperr.Internal(err)
	}
	s.recorder.MeasurementCreated()
	s.publish(ctx, &m)
	return &m, nil
}

// List возвращает замеры пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userUID string) ([]*models.Measurement, error) {
	const op = "measurement.List"

	list, err := s.repo.ListMeasurements(ctx, userUID)
	if err != nil {
		s.log.Error("failed to list measurements", sl.Op(op), sl.Err(err))
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// Get возвращает замер владельца. Чужой замер не отличается от отсутствующего.
func (s *Service) Get(ctx context.Context, userUID, id string) (*models.Measurement, error) {
	const op = "measurement.Get"
	return s.owned(ctx, s.log.With(sl.Op(op)), userUID, id)
}

// RunSegmentation проводит замер через сегментацию:
// pending -> segmenting, вызов устройства, затем completed или failed.
func (s *Service) RunSegmentation(ctx context.Context, userUID, id string) (*models.Measurement, error) {
	const op = "measurement.RunSegmentation"
	log := s.log.With(sl.Op(op), slog.String("measurement_id", id))

	m, err := s.owned(ctx, log, userUID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.BeginSegmentation(ctx, id, userUID)
	if err != nil {
		log.Error("failed to begin segmentation", sl.Err(err))
		return nil, apperr.Internal(err)
	}
	if !ok {
		s.recorder.SegmentationRun(metrics.OutcomeConflict)
		log.Info("segmentation rejected, measurement not pending", slog.String("status", string(m.Status)))
		return nil, apperr.Conflict(apperr.CodeMeasurementNotPending, msgNotPending)
	}
	m.Status = models.StatusSegmenting
	s.publish(ctx, m)

	// После перехода в segmenting отмена запроса клиентом не прерывает прогон.
	runCtx := context.WithoutCancel(ctx)

	res, runErr := s.device.Run(runCtx, id)
	if runErr != nil {
		log.Error("device segmentation failed", sl.Err(runErr))
		if err := s.repo.FailMeasurement(runCtx, id); err != nil {
			log.Error("failed to mark measurement failed", sl.Err(err))
			return nil, apperr.Internal(err)
		}
		s.recorder.SegmentationRun(metrics.OutcomeFailed)
		m.Status = models.StatusFailed
		s.publish(runCtx, m)
		return nil, apperr.SegmentationFailed(runErr)
	}

	if err := s.repo.CompleteMeasurement(runCtx, id, *res); err != nil {
		log.Error("failed to store segmentation result", sl.Err(err))
		return nil, apperr.Internal(err)
	}
	s.recorder.SegmentationRun(metrics.OutcomeCompleted)

	applyResult(m, res)
	s.publish(runCtx, m)
	log.Info("segmentation completed")
	return m, nil
}

// Live возвращает сводку замеров пользователя.
func (s *Service) Live(ctx context.Context, userUID string) (*models.LiveStats, error) {
	const op = "measurement.Live"

	counts, err := s.repo.CountByStatus(ctx, userUID)
	if err != nil {
		s.log.Error("failed to count measurements", sl.Op(op), sl.Err(err))
		return nil, apperr.Internal(err)
	}

	stats := &models.LiveStats{
		Pending:    counts[models.StatusPending],
		Segmenting: counts[models.StatusSegmenting],
		Completed:  counts[models.StatusCompleted],
		Failed:     counts[models.StatusFailed],
	}
	stats.MeasurementCount = stats.Pending + stats.Segmenting + stats.Completed + stats.Failed
	if stats.MeasurementCount > 0 {
		pct := float64(stats.Completed) / float64(stats.MeasurementCount) * 100
		stats.SegmentationPct = math.Round(pct*10) / 10
	}
	return stats, nil
}

func (s *Service) owned(ctx context.Context, log *slog.Logger, userUID, id string) (*models.Measurement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound(apperr.CodeMeasurementNotFound, msgNotFound)
	}

	m, err := s.repo.GetMeasurement(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeMeasurementNotFound, msgNotFound)
		}
		log.Error("failed to get measurement", sl.Err(err))
		return nil, apperr.Internal(err)
	}
	if m.UserUID != userUID {
		return nil, apperr.NotFound(apperr.CodeMeasurementNotFound, msgNotFound)
	}
	return m, nil
}

func (s *Service) publish(ctx context.Context, m *models.Measurement) {
	event := models.MeasurementEvent{
		MeasurementID: m.ID,
		UserUID:       m.UserUID,
		Status:        m.Status,
		At:            s.now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("failed to publish measurement event",
			slog.String("measurement_id", m.ID),
			slog.String("status", string(m.Status)),
			sl.Err(err))
	}
}

func applyResult(m *models.Measurement, res *models.SegmentationResult) {
	m.Status = models.StatusCompleted
	d := res.Dimensions
	if d.Length != nil || d.Width != nil || d.Height != nil {
		m.Dimensions = &d
	}
	m.Weight = res.Weight
	m.Images = res.Images
	if m.Images == nil {
		m.Images = []string{}
	}
}
