package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 存储连接状态常量
const (
	StateStarting = "starting"
	StateReady    = "ready"
	StateDegraded = "degraded"
	StateClosed   = "closed"
)

// 事件常量
const (
	EventSchemaReady      = "schema_ready"
	EventRetriesExhausted = "retries_exhausted"
	EventRecover          = "recover"
	EventClose            = "close"
)

// Snapshot 状态快照
type Snapshot struct {
	State string    `json:"state"`
	Since time.Time `json:"since"`
}

// Machine 存储连接生命周期状态机
type Machine struct {
	mu            sync.RWMutex
	fsm           *fsm.FSM
	since         time.Time
	onStateChange func(from, to string)
}

// NewMachine 创建状态机，初始状态为 starting
func NewMachine(onStateChange func(from, to string)) *Machine {
	m := &Machine{
		since:         time.Now(),
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		StateStarting,
		fsm.Events{
			// 启动阶段
			{Name: EventSchemaReady, Src: []string{StateStarting}, Dst: StateReady},
			{Name: EventRetriesExhausted, Src: []string{StateStarting}, Dst: StateDegraded},

			// 降级后恢复
			{Name: EventRecover, Src: []string{StateDegraded}, Dst: StateReady},

			{Name: EventClose, Src: []string{StateStarting, StateReady, StateDegraded}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Snapshot 获取当前状态及进入时间
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.fsm.Current(), Since: m.since}
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.since = time.Now()
	return nil
}

// TryTrigger 仅在当前状态允许时触发事件，返回是否发生了转换
func (m *Machine) TryTrigger(event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fsm.Can(event) {
		return false
	}
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return false
	}

	m.since = time.Now()
	return true
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}
