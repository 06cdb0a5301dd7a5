package measurement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carton-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/carton-tracker/internal/metrics"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
	"github.com/magabrotheeeer/carton-tracker/internal/storage/repository"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ptr(v float64) *float64 { return &v }

// memRepo хранит замеры в памяти с теми же условиями переходов, что и SQL.
type memRepo struct {
	mu     sync.Mutex
	items  map[string]models.Measurement
	writes int
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]models.Measurement)}
}

func (r *memRepo) CreateMeasurement(_ context.Context, m models.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.items[m.ID] = m
	return nil
}

func (r *memRepo) GetMeasurement(_ context.Context, id string) (*models.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *memRepo) ListMeasurements(_ context.Context, userUID string) ([]*models.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Measurement, 0)
	for _, m := range r.items {
		if m.UserUID == userUID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) BeginSegmentation(_ context.Context, id, userUID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.UserUID != userUID || m.Status != models.StatusPending {
		return false, nil
	}
	r.writes++
	m.Status = models.StatusSegmenting
	r.items[id] = m
	return true, nil
}

func (r *memRepo) CompleteMeasurement(_ context.Context, id string, res models.SegmentationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status != models.StatusSegmenting {
		return repository.ErrNotFound
	}
	r.writes++
	applyResult(&m, &res)
	r.items[id] = m
	return nil
}

func (r *memRepo) FailMeasurement(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status != models.StatusSegmenting {
		return repository.ErrNotFound
	}
	r.writes++
	m.Status = models.StatusFailed
	m.Dimensions, m.Weight, m.Images = nil, nil, []string{}
	r.items[id] = m
	return nil
}

func (r *memRepo) CountByStatus(_ context.Context, userUID string) (map[models.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.Status]int)
	for _, m := range r.items {
		if m.UserUID == userUID {
			counts[m.Status]++
		}
	}
	return counts, nil
}

type fakeDevice struct {
	calls atomic.Int32
	run   func(ctx context.Context, id string) (*models.SegmentationResult, error)
}

func (d *fakeDevice) Run(ctx context.Context, id string) (*models.SegmentationResult, error) {
	d.calls.Add(1)
	return d.run(ctx, id)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, event models.MeasurementEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recorder struct {
	mu       sync.Mutex
	created  int
	outcomes []string
}

func (r *recorder) MeasurementCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *recorder) SegmentationRun(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	repo      *memRepo
	device    *fakeDevice
	publisher *PublisherMock
	recorder  *recorder
	svc       *Service
}

func newFixture(run func(ctx context.Context, id string) (*models.SegmentationResult, error)) *fixture {
	f := &fixture{
		repo:      newMemRepo(),
		device:    &fakeDevice{run: run},
		publisher: new(PublisherMock),
		recorder:  &recorder{},
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.svc = New(newNoopLogger(), f.repo, f.device, f.publisher, f.recorder)
	return f
}

func (f *fixture) publishedStatuses() []models.Status {
	var out []models.Status
	for _, c := range f.publisher.Calls {
		out = append(out, c.Arguments.Get(1).(models.MeasurementEvent).Status)
	}
	return out
}

func requireAppErr(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, code, e.Code)
}

var deviceOK = func(context.Context, string) (*models.SegmentationResult, error) {
	return &models.SegmentationResult{
		Dimensions: models.Dimensions{Length: ptr(30), Width: ptr(20), Height: ptr(10)},
		Weight:     ptr(1.5),
		Images:     []string{"http://dev/a.png", "http://dev/b.png"},
	}, nil
}

func TestService_Create(t *testing.T) {
	f := newFixture(deviceOK)

	m, err := f.svc.Create(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, "u-1", m.UserUID)
	assert.Nil(t, m.Dimensions)
	assert.Nil(t, m.Weight)
	assert.NotNil(t, m.Images)
	assert.Empty(t, m.Images)
	_, err = uuid.Parse(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.recorder.created)
	assert.Equal(t, []models.Status{models.StatusPending}, f.publishedStatuses())
}

func TestService_RunSegmentation_Success(t *testing.T) {
	f := newFixture(deviceOK)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u-1")
	require.NoError(t, err)

	got, err := f.svc.RunSegmentation(ctx, "u-1", created.ID)
	require.NoError(t, err)

	want, _ := deviceOK(ctx, created.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Dimensions)
	assert.Equal(t, want.Dimensions, *got.Dimensions)
	assert.Equal(t, want.Weight, got.Weight)
	assert.Equal(t, want.Images, got.Images)

	stored, err := f.repo.GetMeasurement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, want.Images, stored.Images)

	assert.Equal(t, []string{metrics.OutcomeCompleted}, f.recorder.outcomes)
	assert.Equal(t,
		[]models.Status{models.StatusPending, models.StatusSegmenting, models.StatusCompleted},
		f.publishedStatuses())
}

func TestService_RunSegmentation_DeviceFailure(t *testing.T) {
	f := newFixture(func(context.Context, string) (*models.SegmentationResult, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u-1")
	require.NoError(t, err)

	_, err = f.svc.RunSegmentation(ctx, "u-1", created.ID)
	requireAppErr(t, err, apperr.KindSegmentationFailed, apperr.CodeSegmentationFailed)
	assert.Equal(t, 500, apperr.HTTPStatus(err))
	assert.Equal(t, "Segmentation failed", apperr.From(err).Message)

	stored, err := f.repo.GetMeasurement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Nil(t, stored.Dimensions)
	assert.Nil(t, stored.Weight)
	assert.Empty(t, stored.Images)
	assert.Equal(t, []string{metrics.OutcomeFailed}, f.recorder.outcomes)
}

func TestService_RunSegmentation_NotFound(t *testing.T) {
	tests := []struct {
		name string
		id   func(f *fixture) string
	}{
		{name: "unknown id", id: func(*fixture) string { return uuid.NewString() }},
		{name: "malformed id", id: func(*fixture) string { return "not-a-uuid" }},
		{
			name: "foreign record",
			id: func(f *fixture) string {
				m, err := f.svc.Create(context.Background(), "someone-else")
				if err != nil {
					panic(err)
				}
				return m.ID
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(deviceOK)
			id := tt.id(f)
			writesBefore := f.repo.writes

			_, err := f.svc.RunSegmentation(context.Background(), "u-1", id)
			requireAppErr(t, err, apperr.KindNotFound, apperr.CodeMeasurementNotFound)
			assert.Equal(t, writesBefore, f.repo.writes, "no persistence write expected")
			assert.Equal(t, int32(0), f.device.calls.Load())
		})
	}
}

func TestService_RunSegmentation_TerminalIsNotRerun(t *testing.T) {
	f := newFixture(deviceOK)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u-1")
	require.NoError(t, err)
	_, err = f.svc.RunSegmentation(ctx, "u-1", created.ID)
	require.NoError(t, err)

	_, err = f.svc.RunSegmentation(ctx, "u-1", created.ID)
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeMeasurementNotPending)
	assert.Equal(t, int32(1), f.device.calls.Load())

	stored, err := f.repo.GetMeasurement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestService_RunSegmentation_ConcurrentRunsAreExclusive(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(func(ctx context.Context, id string) (*models.SegmentationResult, error) {
		<-release
		return deviceOK(ctx, id)
	})
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u-1")
	require.NoError(t, err)

	const runners = 5
	errs := make(chan error, runners)
	var wg sync.WaitGroup
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RunSegmentation(ctx, "u-1", created.ID)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return len(errs) == runners-1
	}, 2*time.Second, 5*time.Millisecond, "losers must be rejected while the winner is still running")
	close(release)
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, runners-1, conflicts)
	assert.Equal(t, int32(1), f.device.calls.Load())
}

func TestService_RunSegmentation_ClientCancelDoesNotAbortRun(t *testing.T) {
	f := newFixture(func(ctx context.Context, id string) (*models.SegmentationResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return deviceOK(ctx, id)
	})
	created, err := f.svc.Create(context.Background(), "u-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.device.run = func(runCtx context.Context, id string) (*models.SegmentationResult, error) {
		cancel()
		if err := runCtx.Err(); err != nil {
			return nil, err
		}
		return deviceOK(runCtx, id)
	}

	got, err := f.svc.RunSegmentation(ctx, "u-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestService_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	repo := newMemRepo()
	publisher := new(PublisherMock)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := New(newNoopLogger(), repo, &fakeDevice{run: deviceOK}, publisher, &recorder{})

	created, err := svc.Create(context.Background(), "u-1")
	require.NoError(t, err)
	got, err := svc.RunSegmentation(context.Background(), "u-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestService_ListAndGetAreScopedToOwner(t *testing.T) {
	f := newFixture(deviceOK)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a1, err := f.svc.Create(ctx, "user-a")
	require.NoError(t, err)
	a2, err := f.svc.Create(ctx, "user-a")
	require.NoError(t, err)
	b1, err := f.svc.Create(ctx, "user-b")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a2.ID, list[0].ID, "newest first")
	assert.Equal(t, a1.ID, list[1].ID)

	got, err := f.svc.Get(ctx, "user-a", a1.ID)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, got.ID)

	_, err = f.svc.Get(ctx, "user-a", b1.ID)
	requireAppErr(t, err, apperr.KindNotFound, apperr.CodeMeasurementNotFound)
}

func TestService_Live(t *testing.T) {
	f := newFixture(deviceOK)
	ctx := context.Background()

	stats, err := f.svc.Live(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MeasurementCount)
	assert.Equal(t, 0.0, stats.SegmentationPct)

	first, err := f.svc.Create(ctx, "u-1")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "u-1")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "u-1")
	require.NoError(t, err)
	_, err = f.svc.RunSegmentation(ctx, "u-1", first.ID)
	require.NoError(t, err)

	stats, err = f.svc.Live(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MeasurementCount)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 33.3, stats.SegmentationPct)
}
