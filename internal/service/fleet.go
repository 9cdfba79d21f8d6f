package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/backend"
	"github.com/langchou/fleetgazer/internal/config"
	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/status"
	"github.com/langchou/fleetgazer/pkg/ws"
)

// TrailerSource 拖车数据来源
type TrailerSource interface {
	ListTrailers(ctx context.Context) ([]models.Trailer, error)
}

// StateRecorder 状态变化持久化
type StateRecorder interface {
	Record(ctx context.Context, trailerID int64, s status.Status, at time.Time) error
}

// Broadcaster 状态变化推送
type Broadcaster interface {
	BroadcastMessage(msgType string, data interface{})
}

// TrailerView 拖车及其状态判定结果
type TrailerView struct {
	models.Trailer
	Classification *status.Classification `json:"classification,omitempty"`
	Address        string                 `json:"address,omitempty"`
	Error          string                 `json:"error,omitempty"` // 遥测数据无效时的原因
}

// StatusChange 状态变化事件
type StatusChange struct {
	TrailerID int64          `json:"trailer_id"`
	From      *status.Status `json:"from"` // 首次观测为 null
	To        status.Status  `json:"to"`
	At        time.Time      `json:"at"`
}

// Summary 车队状态汇总
type Summary struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	OnMission int            `json:"on_mission"`
	LastPoll  *time.Time     `json:"last_poll,omitempty"`
}

// FleetService 车队状态服务：计算状态、跟踪变化、定时轮询
type FleetService struct {
	cfg      *config.Config
	logger   *zap.Logger
	source   TrailerSource
	engine   *status.Engine
	tracker  *status.Manager
	recorder StateRecorder
	hub      Broadcaster

	mu       sync.RWMutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	lastPoll time.Time
}

// NewFleetService 创建车队服务，recorder 和 hub 可为空
func NewFleetService(
	cfg *config.Config,
	logger *zap.Logger,
	source TrailerSource,
	engine *status.Engine,
	recorder StateRecorder,
	hub Broadcaster,
) *FleetService {
	svc := &FleetService{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		engine:   engine,
		recorder: recorder,
		hub:      hub,
		stopCh:   make(chan struct{}),
	}

	svc.tracker = status.NewManager(svc.onStatusChange)

	return svc
}

// Engine 状态引擎
func (s *FleetService) Engine() *status.Engine {
	return s.engine
}

// Classify 计算每辆拖车的状态并更新状态跟踪
// 遥测无效的拖车保留在结果中，带错误原因，不参与状态跟踪
func (s *FleetService) Classify(trailers []models.Trailer) []TrailerView {
	views := make([]TrailerView, 0, len(trailers))
	for _, t := range trailers {
		view := TrailerView{Trailer: t}

		c, err := s.classifyOne(&t)
		if err != nil {
			s.logger.Warn("Invalid trailer telemetry", zap.Int64("trailer_id", t.ID), zap.Error(err))
			view.Error = err.Error()
			views = append(views, view)
			continue
		}
		view.Classification = &c

		if _, err := s.tracker.Observe(t.ID, c.Status); err != nil {
			s.logger.Error("Failed to observe trailer status", zap.Int64("trailer_id", t.ID), zap.Error(err))
		}
		views = append(views, view)
	}
	return views
}

func (s *FleetService) classifyOne(t *models.Trailer) (status.Classification, error) {
	tel, err := t.Telemetry()
	if err != nil {
		return status.Classification{}, err
	}
	return s.engine.Snapshot(tel)
}

// Poll 使用服务令牌拉取一次拖车列表
func (s *FleetService) Poll(ctx context.Context) ([]TrailerView, error) {
	ctx = backend.WithToken(ctx, s.cfg.BackendServiceToken)
	trailers, err := s.source.ListTrailers(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll trailers: %w", err)
	}

	views := s.Classify(trailers)

	s.mu.Lock()
	s.lastPoll = time.Now()
	s.mu.Unlock()

	return views, nil
}

// Start 启动轮询，未配置服务令牌时不启动
func (s *FleetService) Start(ctx context.Context) error {
	if s.cfg.BackendServiceToken == "" {
		s.logger.Info("No backend service token, status poller disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Fleet service already running, skipping start")
		return nil
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting fleet service", zap.Duration("interval", s.cfg.PollInterval))

	s.wg.Add(1)
	go s.pollLoop(ctx)

	return nil
}

// Stop 停止轮询
func (s *FleetService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Fleet service stopped")
}

func (s *FleetService) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *FleetService) pollOnce(ctx context.Context) {
	views, err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("Failed to poll trailers", zap.Error(err))
		return
	}
	s.logger.Debug("Polled trailers", zap.Int("count", len(views)))
}

// onStatusChange 状态变化：推送并持久化
func (s *FleetService) onStatusChange(trailerID int64, from, to status.Status) {
	change := StatusChange{TrailerID: trailerID, To: to, At: time.Now()}
	if from.Valid() {
		change.From = &from
	}

	s.logger.Info("Trailer status changed",
		zap.Int64("trailer_id", trailerID),
		zap.Stringer("from", from),
		zap.Stringer("to", to))

	if s.hub != nil {
		s.hub.BroadcastMessage(ws.MsgTypeStatusUpdate, change)
	}

	if s.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.Record(ctx, trailerID, to, change.At); err != nil {
			s.logger.Error("Failed to record status change", zap.Int64("trailer_id", trailerID), zap.Error(err))
		}
	}
}

// States 获取所有拖车当前状态
func (s *FleetService) States() []status.TrailerState {
	all := s.tracker.AllStates()
	states := make([]status.TrailerState, 0, len(all))
	for _, st := range all {
		if st.Status.Valid() {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].TrailerID < states[j].TrailerID })
	return states
}

// State 获取单个拖车当前状态
func (s *FleetService) State(trailerID int64) (status.TrailerState, bool) {
	machine, ok := s.tracker.Get(trailerID)
	if !ok {
		return status.TrailerState{}, false
	}
	st := machine.State()
	return st, st.Status.Valid()
}

// Summary 按状态汇总
func (s *FleetService) Summary() Summary {
	counts := s.tracker.Counts()
	summary := Summary{ByStatus: make(map[string]int, len(counts))}
	for st, n := range counts {
		summary.ByStatus[st.String()] = n
		summary.Total += n
	}
	summary.OnMission = counts[status.OnMission]

	s.mu.RLock()
	if !s.lastPoll.IsZero() {
		last := s.lastPoll
		summary.LastPoll = &last
	}
	s.mu.RUnlock()

	return summary
}

// Snapshot WebSocket 新连接的初始数据
func (s *FleetService) Snapshot() interface{} {
	return map[string]interface{}{
		"states":  s.States(),
		"summary": s.Summary(),
	}
}
