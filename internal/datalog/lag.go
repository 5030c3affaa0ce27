package datalog

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pauser — часть ядра, нужная монитору задержек.
type Pauser interface {
	Pause(enabled bool)
}

// LagMonitor следит за поступлением обновлений и приостанавливает сбор,
// если обновления перестали приходить. Это внешний по отношению к ядру
// надзиратель: он лишь вызывает Pause, ядро о нём не знает.
type LagMonitor struct {
	core  Pauser
	limit time.Duration
	log   *zap.Logger

	mu     sync.Mutex
	last   time.Time
	paused bool
	stop   chan struct{}
	done   chan struct{}
}

// NewLagMonitor создаёт монитор с порогом limit (обычно 5 секунд).
func NewLagMonitor(core Pauser, limit time.Duration, log *zap.Logger) *LagMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &LagMonitor{
		core:  core,
		limit: limit,
		log:   log,
		last:  time.Now(),
	}
}

// Touch отмечает приход обновления; если сбор был приостановлен
// монитором, он возобновляется.
func (m *LagMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = time.Now()
	if m.paused {
		m.paused = false
		m.core.Pause(false)
		m.log.Info("updates resumed, collection unpaused")
	}
}

// Start запускает фоновую проверку каждые 750 мс.
func (m *LagMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
}

// Stop останавливает фоновую проверку и дожидается её завершения.
func (m *LagMonitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.done = nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *LagMonitor) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(750 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *LagMonitor) check() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused || time.Since(m.last) <= m.limit {
		return
	}
	m.paused = true
	m.core.Pause(true)
	m.log.Warn("no updates received, collection paused",
		zap.Duration("limit", m.limit))
}
