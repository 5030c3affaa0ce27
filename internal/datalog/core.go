package datalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

// ErrInvalidInterval возвращается при попытке установить неположительный
// интервал таймера. Прежнее состояние таймера при этом сохраняется.
var ErrInvalidInterval = fmt.Errorf("trigger interval must be positive")

// DatapointObserver получает каждую готовую точку данных.
//
// Наблюдатели вызываются синхронно, в порядке регистрации, после
// завершения мутации состояния ядра. Вызов не должен блокировать:
// медленные операции (сеть, диск) наблюдатель обязан выполнять
// асинхронно у себя.
type DatapointObserver interface {
	OnDatapointReady(dp models.Datapoint)
}

// ConfigObserver получает уведомление о смене конфигурации сессии.
type ConfigObserver interface {
	OnConfigurationChanged(cfg models.SessionConfig)
}

// Snapshot — копия состояния ядра для сохранения в файл.
type Snapshot struct {
	Config  models.SessionConfig
	Keys    []string
	Data    map[string][]float64
	Started time.Time
}

// Core — ядро логгера данных.
//
// Принимает внешние обновления переменных, накапливает их в буферах,
// по срабатыванию триггера собирает точку данных, добавляет её в
// историю и уведомляет наблюдателей. Один мьютекс сериализует
// накопление, проверку триггера и сборку точки: сборка всегда видит
// либо все эффекты обновления, либо ни одного.
type Core struct {
	log *zap.Logger

	mu            sync.Mutex
	cfg           models.SessionConfig
	collecting    bool
	buffers       map[string]*VariableBuffer
	history       *HistoryStore
	sessionStart  time.Time
	lastDatapoint models.Datapoint
	prevTrigger   models.TriggerType // сохранённый триггер на время паузы

	lengthLimit int
	cutMargin   float64

	// generation растёт при каждой остановке таймера; тик устаревшего
	// поколения игнорируется, поэтому поздний тик не может сработать
	// по сброшенному состоянию.
	generation uint64
	tickerStop chan struct{}

	now func() time.Time

	datapointObs []DatapointObserver
	configObs    []ConfigObserver
}

// NewCore создаёт ядро логгера. lengthLimit ограничивает длину истории
// (0 — без ограничения).
func NewCore(log *zap.Logger, lengthLimit int) *Core {
	if log == nil {
		log = zap.NewNop()
	}
	return &Core{
		log:         log,
		buffers:     map[string]*VariableBuffer{},
		history:     NewHistoryStore(nil),
		lengthLimit: lengthLimit,
		cutMargin:   DefaultCutMargin,
		now:         time.Now,
	}
}

// SubscribeDatapoint регистрирует наблюдателя точек данных.
func (c *Core) SubscribeDatapoint(obs DatapointObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datapointObs = append(c.datapointObs, obs)
}

// SubscribeConfig регистрирует наблюдателя смены конфигурации.
func (c *Core) SubscribeConfig(obs ConfigObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configObs = append(c.configObs, obs)
}

// StartCollecting начинает новую сессию сбора данных.
//
// Прежняя конфигурация полностью заменяется, история и буферы
// сбрасываются, запущенный таймер синхронно отменяется до возврата.
// При невалидной конфигурации состояние остаётся прежним.
func (c *Core) StartCollecting(cfg models.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("start collecting: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	c.mu.Lock()
	c.stopTimerLocked()

	c.cfg = cfg
	c.collecting = true
	c.prevTrigger = ""
	c.sessionStart = c.now()
	c.lastDatapoint = nil
	c.buffers = make(map[string]*VariableBuffer, len(cfg.Variables))
	for _, v := range cfg.Variables {
		c.buffers[v] = NewVariableBuffer()
	}
	c.history = NewHistoryStore(cfg.Variables)

	if cfg.TriggerType == models.TriggerTimer {
		c.startTimerLocked()
	}
	c.notifyConfigLocked()
	c.mu.Unlock()

	c.log.Info("collection started",
		zap.String("session", cfg.ID),
		zap.Strings("variables", cfg.Variables),
		zap.String("trigger_type", string(cfg.TriggerType)),
	)
	return nil
}

// OnExternalUpdate принимает обновление одной переменной.
//
// Значение попадает в буфер соответствующей переменной; если активен
// триггер по переменной и имя совпадает с триггерной переменной,
// синхронно собирается точка данных.
func (c *Core) OnExternalUpdate(name string, value *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collecting {
		return
	}
	if buf, ok := c.buffers[name]; ok {
		buf.Accumulate(value)
	}
	if c.cfg.TriggerType == models.TriggerVariable && name == c.cfg.TriggerVariable {
		c.makeDatapointLocked()
	}
}

// OnTimerTick собирает точку данных по тику таймера.
//
// Тик при неактивном таймерном триггере (пауза, другой тип триггера,
// сбор не запущен) игнорируется.
func (c *Core) OnTimerTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collecting || c.cfg.TriggerType != models.TriggerTimer {
		return
	}
	c.makeDatapointLocked()
}

// Pause приостанавливает или возобновляет сбор данных.
//
// Пауза запоминает настроенный триггер и переводит его в none;
// возобновление восстанавливает прежний триггер, перезапуская таймер
// при необходимости. Повторная пауза и повторное возобновление —
// пустые операции.
func (c *Core) Pause(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled {
		if c.prevTrigger != "" {
			return
		}
		c.prevTrigger = c.cfg.TriggerType
		c.cfg.TriggerType = models.TriggerNone
		c.stopTimerLocked()
		c.log.Info("collection paused")
		return
	}
	if c.prevTrigger == "" {
		return
	}
	c.cfg.TriggerType = c.prevTrigger
	c.prevTrigger = ""
	if c.collecting && c.cfg.TriggerType == models.TriggerTimer {
		c.startTimerLocked()
	}
	c.log.Info("collection resumed", zap.String("trigger_type", string(c.cfg.TriggerType)))
}

// SetTriggerType меняет тип триггера во время сессии.
//
// Смена атомарна относительно конкурентных обновлений: запущенный
// таймер отменяется до присвоения нового типа, для таймерного триггера
// требуется уже установленный положительный интервал.
func (c *Core) SetTriggerType(tt models.TriggerType) error {
	if _, err := models.ParseTriggerType(string(tt)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tt == models.TriggerTimer && c.cfg.TriggerTimeout <= 0 {
		return fmt.Errorf("set trigger type: %w", ErrInvalidInterval)
	}
	c.stopTimerLocked()
	c.cfg.TriggerType = tt
	if c.collecting && tt == models.TriggerTimer {
		c.startTimerLocked()
	}
	return nil
}

// SetTriggerInterval меняет интервал таймерного триггера (в секундах).
//
// При активном таймере перезапускает его без потери взведённого
// состояния. Неположительный интервал отклоняется, прежний таймер
// сохраняется.
func (c *Core) SetTriggerInterval(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("set trigger interval %v: %w", seconds, ErrInvalidInterval)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.TriggerTimeout = seconds
	if c.collecting && c.cfg.TriggerType == models.TriggerTimer {
		c.stopTimerLocked()
		c.startTimerLocked()
	}
	return nil
}

// SetTriggerVariable меняет триггерную переменную; действует со
// следующего прихода данных.
func (c *Core) SetTriggerVariable(variable string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.TriggerVariable = variable
}

// GetConfiguration возвращает копию активной конфигурации сессии.
func (c *Core) GetConfiguration() models.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configCopyLocked()
}

// GetListLength возвращает текущее количество точек данных в истории.
func (c *Core) GetListLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Len()
}

// LastDatapoint возвращает копию последней собранной точки данных
// (nil, если точек ещё не было).
func (c *Core) LastDatapoint() models.Datapoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastDatapoint == nil {
		return nil
	}
	dp := make(models.Datapoint, len(c.lastDatapoint))
	for k, v := range c.lastDatapoint {
		dp[k] = v
	}
	return dp
}

// Data возвращает срез истории переменной key (семантика как у
// HistoryStore.Get).
func (c *Core) Data(key string, start, stop int) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Get(key, start, stop)
}

// DataXY возвращает выровненные срезы для графика.
func (c *Core) DataXY(yKey, xKey string, start, stop int) (y, x []float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.GetXY(yKey, xKey, start, stop)
}

// Keys возвращает имена отслеживаемых переменных в порядке регистрации.
func (c *Core) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Keys()
}

// TakeSnapshot возвращает согласованную копию конфигурации и истории
// для сохранения в файл.
func (c *Core) TakeSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Config:  c.configCopyLocked(),
		Keys:    c.history.Keys(),
		Data:    c.history.Data(),
		Started: c.sessionStart,
	}
}

// Close останавливает сбор и синхронно отменяет запущенный таймер.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.collecting = false
}

func (c *Core) configCopyLocked() models.SessionConfig {
	cfg := c.cfg
	cfg.Variables = append([]string(nil), c.cfg.Variables...)
	if c.cfg.Units != nil {
		cfg.Units = make(map[string]string, len(c.cfg.Units))
		for k, v := range c.cfg.Units {
			cfg.Units[k] = v
		}
	}
	return cfg
}

// makeDatapointLocked собирает одну точку данных: сводит буферы всех
// переменных, сбрасывает их согласно режиму повторения, заполняет
// производные поля времени, добавляет точку в историю и уведомляет
// наблюдателей. Вызывается только под мьютексом.
func (c *Core) makeDatapointLocked() models.Datapoint {
	dp := make(models.Datapoint, len(c.cfg.Variables))
	for _, name := range c.cfg.Variables {
		buf := c.buffers[name]
		value := buf.Reduce(c.cfg.ValuingMode)
		buf.Reset(c.cfg.ValueRepeating)
		dp[name] = models.Value(value)
	}

	elapsed := c.now().Sub(c.sessionStart).Seconds()
	if _, ok := c.buffers["time"]; ok {
		dp["time"] = models.Value(elapsed)
	}
	if _, ok := c.buffers["time_h"]; ok {
		dp["time_h"] = models.Value(elapsed / 3600)
	}

	c.history.Append(dp)
	if c.history.TruncateIfNeeded(c.lengthLimit, c.cutMargin) {
		c.log.Debug("history truncated", zap.Int("limit", c.lengthLimit))
	}
	c.lastDatapoint = dp

	for _, obs := range c.datapointObs {
		obs.OnDatapointReady(dp)
	}
	return dp
}

func (c *Core) notifyConfigLocked() {
	cfg := c.configCopyLocked()
	for _, obs := range c.configObs {
		obs.OnConfigurationChanged(cfg)
	}
}

// startTimerLocked запускает горутину таймерного триггера для текущего
// поколения. Существующий таймер должен быть остановлен заранее.
func (c *Core) startTimerLocked() {
	interval := time.Duration(c.cfg.TriggerTimeout * float64(time.Second))
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop
	gen := c.generation

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.tick(gen)
			}
		}
	}()
}

// stopTimerLocked отменяет запущенный таймер и обесценивает его тики.
func (c *Core) stopTimerLocked() {
	c.generation++
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

func (c *Core) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return // тик остановленного таймера
	}
	if !c.collecting || c.cfg.TriggerType != models.TriggerTimer {
		return
	}
	c.makeDatapointLocked()
}
