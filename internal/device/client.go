// Package device реализует HTTP-клиент внешнего устройства сегментации.
// Каждая попытка ограничена таймаутом, сетевые ошибки и ответы 5xx
// повторяются с экспоненциальной задержкой, 4xx и некорректное тело не повторяются.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/carton-tracker/internal/config"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

const maxBodySize = 1 << 20

// Пути устройства по умолчанию.
const (
	DefaultSegmentPath = "/run-segmentation"
	DefaultStatusPath  = "/status"
)

// ErrMalformedResponse возвращается, когда тело ответа устройства не разбирается.
var ErrMalformedResponse = errors.New("malformed device response")

// StatusError описывает ответ устройства с неуспешным HTTP-статусом.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device responded with status %d", e.Code)
}

// Observer получает длительность каждого вызова устройства.
type Observer interface {
	ObserveDevice(result string, d time.Duration)
}

// Client — клиент устройства сегментации.
type Client struct {
	baseURL    string
	segmentURL string
	statusURL  string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	observer   Observer
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithObserver подключает сбор метрик.
func WithObserver(o Observer) Option {
	return func(cl *Client) { cl.observer = o }
}

// NewClient создаёт клиент устройства.
func NewClient(cfg config.Device, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.DeviceURL, "/"),
		httpClient: &http.Client{},
		timeout:    cfg.DeviceTimeout,
		maxRetries: cfg.DeviceMaxRetries,
		retryDelay: cfg.DeviceRetryDelay,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	c.segmentURL = c.baseURL + devicePath(cfg.SegmentPath, DefaultSegmentPath)
	c.statusURL = c.baseURL + devicePath(cfg.StatusPath, DefaultStatusPath)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runRequest struct {
	MeasurementID string `json:"measurementId"`
}

// Run запрашивает сегментацию замера и возвращает результат устройства.
func (c *Client) Run(ctx context.Context, measurementID string) (*models.SegmentationResult, error) {
	const op = "device.Run"

	body, err := json.Marshal(runRequest{MeasurementID: measurementID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	result, err := backoff.RetryWithData(func() (*models.SegmentationResult, error) {
		return c.runOnce(ctx, body)
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (c *Client) runOnce(ctx context.Context, body []byte) (res *models.SegmentationResult, err error) {
	started := time.Now()
	defer func() {
		c.observe(err, time.Since(started))
	}()

	attemptCtx, cancel := c.attemptContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.segmentURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var result models.SegmentationResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	if result.Images == nil {
		result.Images = []string{}
	}
	return &result, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// Status опрашивает устройство. Недоступность устройства не считается ошибкой.
func (c *Client) Status(ctx context.Context) (*models.DeviceStatus, error) {
	const op = "device.Status"

	attemptCtx, cancel := c.attemptContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return &models.DeviceStatus{Online: false}, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	status := &models.DeviceStatus{Online: resp.StatusCode >= 200 && resp.StatusCode <= 299}
	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err == nil {
		status.Status = body.Status
	}
	return status, nil
}

func devicePath(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (c *Client) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.observer.ObserveDevice(result, d)
}
