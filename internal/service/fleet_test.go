package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/backend"
	"github.com/langchou/fleetgazer/internal/config"
	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/status"
	"github.com/langchou/fleetgazer/pkg/ws"
)

type fakeSource struct {
	mu       sync.Mutex
	trailers []models.Trailer
	err      error
	calls    atomic.Int32
	tokens   []string
}

func (f *fakeSource) ListTrailers(ctx context.Context) ([]models.Trailer, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, backend.TokenFrom(ctx))
	return append([]models.Trailer(nil), f.trailers...), f.err
}

func (f *fakeSource) set(trailers ...models.Trailer) {
	f.mu.Lock()
	f.trailers = trailers
	f.mu.Unlock()
}

type record struct {
	trailerID int64
	status    status.Status
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []record
}

func (f *fakeRecorder) Record(_ context.Context, trailerID int64, s status.Status, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record{trailerID, s})
	return nil
}

type fakeHub struct {
	mu       sync.Mutex
	messages []StatusChange
}

func (f *fakeHub) BroadcastMessage(msgType string, data interface{}) {
	if msgType != ws.MsgTypeStatusUpdate {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data.(StatusChange))
}

func atWarehouse(id int64, battery float64) models.Trailer {
	return models.Trailer{
		ID:                      id,
		Latitude:                "47.2184",
		Longitude:               "-1.5536",
		TechnicalDisponibility:  90,
		Autonomy:                80,
		EnergyConsumptionPer100: 12,
		BatteryLevel:            &battery,
	}
}

func onMission(id int64) models.Trailer {
	return models.Trailer{
		ID:                      id,
		Latitude:                "47.2130",
		Longitude:               "-1.5300",
		DailyKmTraveled:         42,
		TechnicalDisponibility:  95,
		Autonomy:                120,
		EnergyConsumptionPer100: 10,
	}
}

func newTestService(source TrailerSource, recorder StateRecorder, hub Broadcaster) *FleetService {
	cfg := &config.Config{BackendServiceToken: "svc-token", PollInterval: 10 * time.Millisecond}
	return NewFleetService(cfg, zap.NewNop(), source, status.NewEngine(status.DefaultConfig()), recorder, hub)
}

func TestPollClassifiesAndTracksChanges(t *testing.T) {
	source := &fakeSource{}
	source.set(atWarehouse(1, 60), onMission(2))
	recorder := &fakeRecorder{}
	hub := &fakeHub{}
	svc := newTestService(source, recorder, hub)

	views, err := svc.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, status.Charging, views[0].Classification.Status)
	require.Equal(t, status.OnMission, views[1].Classification.Status)
	require.Equal(t, []string{"svc-token"}, source.tokens)

	require.Len(t, hub.messages, 2)
	require.Nil(t, hub.messages[0].From)
	require.Len(t, recorder.records, 2)

	// 状态未变化不产生事件
	_, err = svc.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, hub.messages, 2)

	source.set(atWarehouse(1, 90), onMission(2))
	_, err = svc.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, hub.messages, 3)
	last := hub.messages[2]
	require.Equal(t, int64(1), last.TrailerID)
	require.Equal(t, status.Charging, *last.From)
	require.Equal(t, status.Available, last.To)
	require.Equal(t, record{1, status.Available}, recorder.records[2])

	summary := svc.Summary()
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.OnMission)
	require.Equal(t, 1, summary.ByStatus["Available"])
	require.Equal(t, 0, summary.ByStatus["Maintenance"])
	require.NotNil(t, summary.LastPoll)
}

func TestClassifyKeepsInvalidTrailers(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil, nil)

	broken := onMission(3)
	broken.Latitude = "north"
	views := svc.Classify([]models.Trailer{broken, onMission(4)})

	require.Len(t, views, 2)
	require.Nil(t, views[0].Classification)
	require.NotEmpty(t, views[0].Error)
	require.NotNil(t, views[1].Classification)

	_, ok := svc.State(3)
	require.False(t, ok)
	st, ok := svc.State(4)
	require.True(t, ok)
	require.Equal(t, status.OnMission, st.Status)
	require.Len(t, svc.States(), 1)
}

func TestPollPropagatesSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("backend down")}
	svc := newTestService(source, nil, nil)

	_, err := svc.Poll(context.Background())
	require.Error(t, err)
	require.Nil(t, svc.Summary().LastPoll)
}

func TestStartPollsUntilStopped(t *testing.T) {
	source := &fakeSource{}
	source.set(onMission(1))
	svc := newTestService(source, nil, nil)

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return source.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	svc.Stop()
	calls := source.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, calls, source.calls.Load())
	svc.Stop()
}

func TestStartWithoutTokenIsDisabled(t *testing.T) {
	source := &fakeSource{}
	cfg := &config.Config{PollInterval: time.Millisecond}
	svc := NewFleetService(cfg, zap.NewNop(), source, status.NewEngine(status.DefaultConfig()), nil, nil)

	require.NoError(t, svc.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.Zero(t, source.calls.Load())
	svc.Stop()
}

func TestSnapshotContainsStatesAndSummary(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil, nil)
	svc.Classify([]models.Trailer{onMission(5)})

	snap, ok := svc.Snapshot().(map[string]interface{})
	require.True(t, ok)
	require.Len(t, snap["states"], 1)
	require.Equal(t, 1, snap["summary"].(Summary).Total)
}
