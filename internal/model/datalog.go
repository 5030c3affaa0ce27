package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TriggerType определяет, что запускает создание новой точки данных.
//
// Возможные значения:
//   - TriggerNone: сбор приостановлен, точки данных не создаются
//   - TriggerTimer: точка данных создаётся по таймеру с заданным интервалом
//   - TriggerVariable: точка данных создаётся при приходе значения триггерной переменной
type TriggerType string

const (
	TriggerNone     TriggerType = "none"
	TriggerTimer    TriggerType = "timer"
	TriggerVariable TriggerType = "variable"
)

// ParseTriggerType проверяет строку и возвращает соответствующий TriggerType.
//
// Возвращает ошибку, если строка не является допустимым типом триггера.
func ParseTriggerType(s string) (TriggerType, error) {
	switch TriggerType(s) {
	case TriggerNone, TriggerTimer, TriggerVariable:
		return TriggerType(s), nil
	}
	return "", fmt.Errorf("unknown trigger type %q", s)
}

// ValuingMode определяет способ сведения накопленных значений переменной
// к одному значению в точке данных.
//
// Возможные значения:
//   - ValuingLast: последнее полученное значение
//   - ValuingAverage: среднее арифметическое всех полученных значений
type ValuingMode string

const (
	ValuingLast    ValuingMode = "last"
	ValuingAverage ValuingMode = "average"
)

// ParseValuingMode проверяет строку и возвращает соответствующий ValuingMode.
func ParseValuingMode(s string) (ValuingMode, error) {
	switch ValuingMode(s) {
	case ValuingLast, ValuingAverage:
		return ValuingMode(s), nil
	}
	return "", fmt.Errorf("unknown valuing mode %q", s)
}

// Value — значение переменной в точке данных.
//
// Отличается от float64 только сериализацией: NaN кодируется как null,
// поскольку стандартный JSON не поддерживает NaN.
type Value float64

var jsonNull = []byte("null")

// MarshalJSON кодирует значение в JSON, заменяя NaN на null.
func (v Value) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(v)) {
		return jsonNull, nil
	}
	return json.Marshal(float64(v))
}

// UnmarshalJSON декодирует значение из JSON, заменяя null на NaN.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*v = Value(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Datapoint — одна собранная точка данных: отображение имени переменной
// на сведённое значение.
type Datapoint map[string]Value

// Update представляет обновление одной переменной по сети.
//
// Value объявлен через указатель для различения значения "0"
// от отсутствующего значения при сериализации.
type Update struct {
	Name      string     `json:"name"`
	Value     *float64   `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// SessionConfig описывает конфигурацию одной сессии сбора данных.
//
// Создаётся заново при каждом вызове start_collecting; во время сессии
// изменяются только отдельные поля через явные мутаторы (пауза,
// смена типа/интервала/переменной триггера).
type SessionConfig struct {
	ID              string            `json:"id,omitempty"`
	Variables       []string          `json:"variables"`
	Units           map[string]string `json:"units,omitempty"`
	TriggerType     TriggerType       `json:"trigger_type"`
	TriggerTimeout  float64           `json:"trigger_timeout"` // интервал таймера в секундах
	TriggerVariable string            `json:"trigger_variable,omitempty"`
	ValuingMode     ValuingMode       `json:"valuing_mode"`
	ValueRepeating  bool              `json:"value_repeating"`
}

// Validate проверяет конфигурацию сессии.
//
// Возвращает ошибку при неизвестном типе триггера, неположительном
// интервале таймера или отсутствующей триггерной переменной.
func (c *SessionConfig) Validate() error {
	if _, err := ParseTriggerType(string(c.TriggerType)); err != nil {
		return err
	}
	if _, err := ParseValuingMode(string(c.ValuingMode)); err != nil {
		return err
	}
	if c.TriggerType == TriggerTimer && c.TriggerTimeout <= 0 {
		return fmt.Errorf("trigger timeout must be positive, got %v", c.TriggerTimeout)
	}
	if c.TriggerType == TriggerVariable && c.TriggerVariable == "" {
		return fmt.Errorf("trigger variable is required for variable trigger")
	}
	return nil
}
