package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

const measurementColumns = `id, user_uid, status, length, width, height, weight, images, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateMeasurement вставляет новую запись замера.
func (s *Storage) CreateMeasurement(ctx context.Context, m models.Measurement) error {
	const op = "storage.CreateMeasurement"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	images, err := encodeImages(m.Images)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO measurements (id, user_uid, status, images, created_at)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query, m.ID, m.UserUID, string(m.Status), images, m.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetMeasurement возвращает замер по ID.
func (s *Storage) GetMeasurement(ctx context.Context, id string) (*models.Measurement, error) {
	const op = "storage.GetMeasurement"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE id = $1`
	m, err := scanMeasurement(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// ListMeasurements возвращает замеры пользователя, новые первыми.
func (s *Storage) ListMeasurements(ctx context.Context, userUID string) ([]*models.Measurement, error) {
	const op = "storage.ListMeasurements"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + measurementColumns + `
			  FROM measurements
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// BeginSegmentation атомарно переводит замер владельца из pending в segmenting.
// Возвращает false, если ни одна строка не подошла под условие.
func (s *Storage) BeginSegmentation(ctx context.Context, id, userUID string) (bool, error) {
	const op = "storage.BeginSegmentation"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE measurements
			  SET status = 'segmenting', segmentation_started_at = NOW()
			  WHERE id = $1 AND user_uid = $2 AND status = 'pending'`
	result, err := s.DB.ExecContext(ctx, query, id, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// CompleteMeasurement сохраняет результат устройства и переводит замер в completed.
func (s *Storage) CompleteMeasurement(ctx context.Context, id string, res models.SegmentationResult) error {
	const op = "storage.CompleteMeasurement"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	images, err := encodeImages(res.Images)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `UPDATE measurements
			  SET status = 'completed', length = $2, width = $3, height = $4, weight = $5, images = $6
			  WHERE id = $1 AND status = 'segmenting'`
	result, err := s.DB.ExecContext(ctx, query, id,
		res.Dimensions.Length, res.Dimensions.Width, res.Dimensions.Height, res.Weight, images)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(result, op)
}

// FailMeasurement переводит замер в failed и очищает результаты.
func (s *Storage) FailMeasurement(ctx context.Context, id string) error {
	const op = "storage.FailMeasurement"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE measurements
			  SET status = 'failed', length = NULL, width = NULL, height = NULL, weight = NULL, images = '[]'
			  WHERE id = $1 AND status = 'segmenting'`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(result, op)
}

// FailStaleSegmenting переводит в failed замеры, зависшие в segmenting дольше olderThan,
// и возвращает их новое состояние.
func (s *Storage) FailStaleSegmenting(ctx context.Context, olderThan time.Duration) ([]*models.Measurement, error) {
	const op = "storage.FailStaleSegmenting"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE measurements
			  SET status = 'failed', length = NULL, width = NULL, height = NULL, weight = NULL, images = '[]'
			  WHERE status = 'segmenting' AND segmentation_started_at < NOW() - make_interval(secs => $1)
			  RETURNING ` + measurementColumns
	rows, err := s.DB.QueryContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountByStatus возвращает количество замеров пользователя по состояниям.
func (s *Storage) CountByStatus(ctx context.Context, userUID string) (map[models.Status]int, error) {
	const op = "storage.CountByStatus"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT status, COUNT(*) FROM measurements WHERE user_uid = $1 GROUP BY status`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		counts[models.Status(status)] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return counts, nil
}

func scanMeasurement(row rowScanner) (*models.Measurement, error) {
	var (
		m                             models.Measurement
		status                        string
		length, width, height, weight sql.NullFloat64
		images                        []byte
	)
	if err := row.Scan(&m.ID, &m.UserUID, &status, &length, &width, &height, &weight, &images, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Status = models.Status(status)
	if length.Valid || width.Valid || height.Valid {
		m.Dimensions = &models.Dimensions{
			Length: nullFloat(length),
			Width:  nullFloat(width),
			Height: nullFloat(height),
		}
	}
	m.Weight = nullFloat(weight)
	m.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &m.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
		if m.Images == nil {
			m.Images = []string{}
		}
	}
	return &m, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func expectOneRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
