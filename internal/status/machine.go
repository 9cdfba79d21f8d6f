package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 事件常量，每个目标状态一个事件，可从任意状态触发
const (
	EventToAvailable   = "to_available"
	EventToOnMission   = "to_on_mission"
	EventToCharging    = "to_charging"
	EventToMaintenance = "to_maintenance"
)

// 未观测过的拖车初始状态
const stateUnknown = "unknown"

func eventFor(s Status) string {
	switch s {
	case Available:
		return EventToAvailable
	case OnMission:
		return EventToOnMission
	case Charging:
		return EventToCharging
	case Maintenance:
		return EventToMaintenance
	default:
		return ""
	}
}

// TrailerState 拖车当前状态
type TrailerState struct {
	TrailerID int64     `json:"trailer_id"`
	Status    Status    `json:"status"`
	Since     time.Time `json:"since"`
}

// ChangeFunc 状态变化回调，首次观测时 from 为 0
type ChangeFunc func(trailerID int64, from, to Status)

// Machine 单个拖车的状态机
type Machine struct {
	mu        sync.RWMutex
	trailerID int64
	fsm       *fsm.FSM
	since     time.Time
	onChange  ChangeFunc
}

// NewMachine 创建状态机
func NewMachine(trailerID int64, onChange ChangeFunc) *Machine {
	m := &Machine{
		trailerID: trailerID,
		onChange:  onChange,
		since:     time.Now(),
	}

	src := []string{stateUnknown}
	for _, s := range All {
		src = append(src, s.String())
	}

	events := make(fsm.Events, 0, len(All))
	for _, s := range All {
		events = append(events, fsm.EventDesc{Name: eventFor(s), Src: src, Dst: s.String()})
	}

	m.fsm = fsm.NewFSM(
		stateUnknown,
		events,
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onChange == nil || e.Src == e.Dst {
					return
				}
				from, _ := ParseStatus(e.Src)
				to, _ := ParseStatus(e.Dst)
				m.onChange(m.trailerID, from, to)
			},
		},
	)

	return m
}

// Current 当前状态，未观测过返回 0
func (m *Machine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, _ := ParseStatus(m.fsm.Current())
	return s
}

// State 获取完整状态
func (m *Machine) State() TrailerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, _ := ParseStatus(m.fsm.Current())
	return TrailerState{TrailerID: m.trailerID, Status: s, Since: m.since}
}

// Observe 记录新计算出的状态，状态改变时返回 true
func (m *Machine) Observe(s Status) (bool, error) {
	event := eventFor(s)
	if event == "" {
		return false, fmt.Errorf("observe invalid status %d", uint8(s))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() == s.String() {
		return false, nil
	}

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return false, fmt.Errorf("trigger event %s: %w", event, err)
	}
	m.since = time.Now()
	return true, nil
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
	onChange ChangeFunc
}

// NewManager 创建管理器
func NewManager(onChange ChangeFunc) *Manager {
	return &Manager{
		machines: make(map[int64]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(trailerID int64) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[trailerID]; ok {
		return machine
	}

	machine := NewMachine(trailerID, m.onChange)
	m.machines[trailerID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(trailerID int64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[trailerID]
	return machine, ok
}

// Observe 记录拖车的最新状态
func (m *Manager) Observe(trailerID int64, s Status) (bool, error) {
	return m.GetOrCreate(trailerID).Observe(s)
}

// AllStates 获取所有拖车状态
func (m *Manager) AllStates() map[int64]TrailerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[int64]TrailerState, len(m.machines))
	for id, machine := range m.machines {
		states[id] = machine.State()
	}
	return states
}

// Counts 按状态统计拖车数量
func (m *Manager) Counts() map[Status]int {
	counts := make(map[Status]int, len(All))
	for _, s := range All {
		counts[s] = 0
	}
	for _, st := range m.AllStates() {
		if st.Status.Valid() {
			counts[st.Status]++
		}
	}
	return counts
}
