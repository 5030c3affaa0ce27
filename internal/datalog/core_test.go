package datalog

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

type recordingObserver struct {
	datapoints []models.Datapoint
	configs    []models.SessionConfig
	order      *[]string
	tag        string
}

func (r *recordingObserver) OnDatapointReady(dp models.Datapoint) {
	r.datapoints = append(r.datapoints, dp)
	if r.order != nil {
		*r.order = append(*r.order, r.tag)
	}
}

func (r *recordingObserver) OnConfigurationChanged(cfg models.SessionConfig) {
	r.configs = append(r.configs, cfg)
}

func variableTriggerConfig() models.SessionConfig {
	return models.SessionConfig{
		Variables:       []string{"x", "y"},
		TriggerType:     models.TriggerVariable,
		TriggerVariable: "x",
		ValuingMode:     models.ValuingAverage,
	}
}

// TestCore_VariableTriggerScenario воспроизводит сценарий: усреднение y
// между срабатываниями триггера по приходу x.
func TestCore_VariableTriggerScenario(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	obs := &recordingObserver{}
	c.SubscribeDatapoint(obs)
	require.NoError(t, c.StartCollecting(variableTriggerConfig()))

	c.OnExternalUpdate("y", fptr(1))
	c.OnExternalUpdate("y", fptr(3))
	c.OnExternalUpdate("x", fptr(10)) // триггер

	require.Len(t, obs.datapoints, 1)
	dp := obs.datapoints[0]
	require.InDelta(t, 10, float64(dp["x"]), 1e-12)
	require.InDelta(t, 2, float64(dp["y"]), 1e-12) // среднее 1 и 3

	// Второй цикл.
	c.OnExternalUpdate("y", fptr(5))
	c.OnExternalUpdate("x", fptr(20))

	x, err := c.Data("x", 0, End)
	require.NoError(t, err)
	require.Equal(t, []float64{10, 20}, x)
	y, err := c.Data("y", 0, End)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 5}, y)
	require.Equal(t, 2, c.GetListLength())
}

// TestCore_ValueRepeating проверяет перенос значения, когда между двумя
// триггерами новых данных не пришло.
func TestCore_ValueRepeating(t *testing.T) {
	cfg := variableTriggerConfig()
	cfg.ValueRepeating = true
	c := NewCore(zap.NewNop(), 0)
	require.NoError(t, c.StartCollecting(cfg))

	c.OnExternalUpdate("y", fptr(3.5))
	c.OnExternalUpdate("x", fptr(1))
	c.OnExternalUpdate("x", fptr(2)) // y не обновлялась

	y, err := c.Data("y", 0, End)
	require.NoError(t, err)
	require.Len(t, y, 2)
	require.Equal(t, y[0], y[1])
	require.InDelta(t, 3.5, y[1], 1e-12)
}

// TestCore_NoRepeatingYieldsNaN: без повторения отсутствующее значение — NaN.
func TestCore_NoRepeatingYieldsNaN(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	require.NoError(t, c.StartCollecting(variableTriggerConfig()))

	c.OnExternalUpdate("y", fptr(3.5))
	c.OnExternalUpdate("x", fptr(1))
	c.OnExternalUpdate("x", fptr(2))

	y, err := c.Data("y", 0, End)
	require.NoError(t, err)
	require.InDelta(t, 3.5, y[0], 1e-12)
	require.True(t, math.IsNaN(y[1]))
}

// TestCore_PauseResume: во время паузы тики таймера не создают точек,
// после возобновления создают снова.
func TestCore_PauseResume(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	cfg := models.SessionConfig{
		Variables:      []string{"x"},
		TriggerType:    models.TriggerTimer,
		TriggerTimeout: 3600, // реальный таймер не успеет сработать, тикаем вручную
		ValuingMode:    models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))
	defer c.Close()

	c.OnExternalUpdate("x", fptr(1))
	c.OnTimerTick()
	require.Equal(t, 1, c.GetListLength())

	c.Pause(true)
	c.Pause(true) // повторная пауза — пустая операция
	c.OnTimerTick()
	c.OnTimerTick()
	require.Equal(t, 1, c.GetListLength())
	require.Equal(t, models.TriggerNone, c.GetConfiguration().TriggerType)

	c.Pause(false)
	require.Equal(t, models.TriggerTimer, c.GetConfiguration().TriggerType)
	c.OnTimerTick()
	require.Equal(t, 2, c.GetListLength())
}

// TestCore_PauseRestoresVariableTrigger: пауза сохраняет триггер по переменной.
func TestCore_PauseRestoresVariableTrigger(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	require.NoError(t, c.StartCollecting(variableTriggerConfig()))

	c.Pause(true)
	c.OnExternalUpdate("x", fptr(1))
	require.Equal(t, 0, c.GetListLength())

	c.Pause(false)
	cfg := c.GetConfiguration()
	require.Equal(t, models.TriggerVariable, cfg.TriggerType)
	require.Equal(t, "x", cfg.TriggerVariable)

	c.OnExternalUpdate("x", fptr(1))
	require.Equal(t, 1, c.GetListLength())
}

// TestCore_TriggerTypeSwitch: переключение TIMER -> VARIABLE -> TIMER
// сохраняет интервал и не приводит к двойному срабатыванию.
func TestCore_TriggerTypeSwitch(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	cfg := models.SessionConfig{
		Variables:      []string{"x"},
		TriggerType:    models.TriggerTimer,
		TriggerTimeout: 3600,
		ValuingMode:    models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))
	defer c.Close()

	c.SetTriggerVariable("x")
	require.NoError(t, c.SetTriggerType(models.TriggerVariable))
	c.OnTimerTick() // таймер больше не активен
	require.Equal(t, 0, c.GetListLength())

	c.OnExternalUpdate("x", fptr(1))
	require.Equal(t, 1, c.GetListLength())

	require.NoError(t, c.SetTriggerType(models.TriggerTimer))
	got := c.GetConfiguration()
	require.Equal(t, models.TriggerTimer, got.TriggerType)
	require.InDelta(t, 3600, got.TriggerTimeout, 1e-12)

	c.OnExternalUpdate("x", fptr(2)) // приход переменной больше не триггерит
	require.Equal(t, 1, c.GetListLength())
}

// TestCore_Validation_TableDriven: невалидные конфигурации и мутаторы
// отклоняются без частичного перехода состояния.
func TestCore_Validation_TableDriven(t *testing.T) {
	tests := []struct {
		name string
		op   func(c *Core) error
	}{
		{"unknown trigger type on start", func(c *Core) error {
			return c.StartCollecting(models.SessionConfig{
				Variables:   []string{"x"},
				TriggerType: "cron",
				ValuingMode: models.ValuingLast,
			})
		}},
		{"negative interval on start", func(c *Core) error {
			return c.StartCollecting(models.SessionConfig{
				Variables:      []string{"x"},
				TriggerType:    models.TriggerTimer,
				TriggerTimeout: -1,
				ValuingMode:    models.ValuingLast,
			})
		}},
		{"unknown trigger type on set", func(c *Core) error {
			return c.SetTriggerType("cron")
		}},
		{"zero interval on set", func(c *Core) error {
			return c.SetTriggerInterval(0)
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := NewCore(zap.NewNop(), 0)
			require.NoError(t, c.StartCollecting(variableTriggerConfig()))
			before := c.GetConfiguration()

			require.Error(t, tt.op(c))

			after := c.GetConfiguration()
			require.Equal(t, before.TriggerType, after.TriggerType)
			require.Equal(t, before.TriggerTimeout, after.TriggerTimeout)

			// Сессия осталась рабочей.
			c.OnExternalUpdate("x", fptr(1))
			require.Equal(t, 1, c.GetListLength())
		})
	}
}

// TestCore_SetTriggerIntervalInvalidKeepsTimer: отклонённый интервал
// не сбивает работающий таймерный триггер.
func TestCore_SetTriggerIntervalInvalidKeepsTimer(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	cfg := models.SessionConfig{
		Variables:      []string{"x"},
		TriggerType:    models.TriggerTimer,
		TriggerTimeout: 3600,
		ValuingMode:    models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))
	defer c.Close()

	require.ErrorIs(t, c.SetTriggerInterval(-5), ErrInvalidInterval)
	require.InDelta(t, 3600, c.GetConfiguration().TriggerTimeout, 1e-12)

	c.OnTimerTick()
	require.Equal(t, 1, c.GetListLength())
}

// TestCore_ObserversNotifiedInOrder: наблюдатели вызываются в порядке регистрации.
func TestCore_ObserversNotifiedInOrder(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	var order []string
	first := &recordingObserver{order: &order, tag: "first"}
	second := &recordingObserver{order: &order, tag: "second"}
	c.SubscribeDatapoint(first)
	c.SubscribeDatapoint(second)
	c.SubscribeConfig(first)

	require.NoError(t, c.StartCollecting(variableTriggerConfig()))
	require.Len(t, first.configs, 1)
	require.Equal(t, []string{"x", "y"}, first.configs[0].Variables)

	c.OnExternalUpdate("x", fptr(1))
	require.Equal(t, []string{"first", "second"}, order)
}

// TestCore_TimeFields: производные поля time/time_h заполняются ядром.
func TestCore_TimeFields(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	cfg := models.SessionConfig{
		Variables:       []string{"time", "time_h", "x"},
		TriggerType:     models.TriggerVariable,
		TriggerVariable: "x",
		ValuingMode:     models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))

	base := time.Now()
	c.now = func() time.Time { return base.Add(7200 * time.Second) }
	c.sessionStart = base

	c.OnExternalUpdate("x", fptr(1))
	dp := c.LastDatapoint()
	require.InDelta(t, 7200, float64(dp["time"]), 1e-6)
	require.InDelta(t, 2, float64(dp["time_h"]), 1e-9)
}

// TestCore_RestartResetsHistory: повторный StartCollecting полностью
// сбрасывает историю и набор переменных.
func TestCore_RestartResetsHistory(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	require.NoError(t, c.StartCollecting(variableTriggerConfig()))
	c.OnExternalUpdate("x", fptr(1))
	require.Equal(t, 1, c.GetListLength())

	cfg := models.SessionConfig{
		Variables:       []string{"a"},
		TriggerType:     models.TriggerVariable,
		TriggerVariable: "a",
		ValuingMode:     models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))
	require.Equal(t, 0, c.GetListLength())
	require.Equal(t, []string{"a"}, c.Keys())

	_, err := c.Data("x", 0, End)
	require.ErrorIs(t, err, ErrUnknownVariable)
}

// TestCore_LengthLimit: история обрезается с гистерезисом 1.1.
func TestCore_LengthLimit(t *testing.T) {
	c := NewCore(zap.NewNop(), 100)
	require.NoError(t, c.StartCollecting(models.SessionConfig{
		Variables:       []string{"x"},
		TriggerType:     models.TriggerVariable,
		TriggerVariable: "x",
		ValuingMode:     models.ValuingLast,
	}))

	for i := 0; i < 111; i++ {
		c.OnExternalUpdate("x", fptr(float64(i)))
	}
	require.Equal(t, 100, c.GetListLength())

	x, err := c.Data("x", 0, End)
	require.NoError(t, err)
	require.InDelta(t, 11, x[0], 1e-12)
	require.InDelta(t, 110, x[99], 1e-12)
}

// TestCore_UnknownUpdateIgnored: обновление неизвестной переменной не
// ломает сессию и не триггерит сборку.
func TestCore_UnknownUpdateIgnored(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	require.NoError(t, c.StartCollecting(variableTriggerConfig()))

	c.OnExternalUpdate("stranger", fptr(1))
	require.Equal(t, 0, c.GetListLength())
}

// TestCore_RealTimer: настоящий таймерный триггер создаёт точки и
// синхронно останавливается при Close.
func TestCore_RealTimer(t *testing.T) {
	c := NewCore(zap.NewNop(), 0)
	cfg := models.SessionConfig{
		Variables:      []string{"x"},
		TriggerType:    models.TriggerTimer,
		TriggerTimeout: 0.01,
		ValuingMode:    models.ValuingLast,
	}
	require.NoError(t, c.StartCollecting(cfg))

	require.Eventually(t, func() bool {
		return c.GetListLength() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	c.Close()
	n := c.GetListLength()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, n, c.GetListLength(), "stale tick fired after Close")
}
