package datalog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePauser struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakePauser) Pause(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enabled)
}

func (f *fakePauser) last() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return false, 0
	}
	return f.calls[len(f.calls)-1], len(f.calls)
}

// TestLagMonitor проверяет паузу при простое и возобновление при
// приходе обновления.
func TestLagMonitor(t *testing.T) {
	p := &fakePauser{}
	m := NewLagMonitor(p, 10*time.Millisecond, zap.NewNop())
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		v, n := p.last()
		return n == 1 && v
	}, 3*time.Second, 10*time.Millisecond, "monitor should pause after stall")

	m.Touch()
	v, n := p.last()
	require.Equal(t, 2, n)
	require.False(t, v, "touch should resume collection")

	// Повторный Touch без паузы не дёргает ядро.
	m.Touch()
	_, n = p.last()
	require.Equal(t, 2, n)
}
