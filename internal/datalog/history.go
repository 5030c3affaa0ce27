package datalog

import (
	"fmt"
	"math"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

// End — маркер "до конца последовательности" для параметра stop.
const End = math.MaxInt

// DefaultCutMargin — коэффициент гистерезиса обрезки истории: обрезка
// запускается, только когда длина превышает limit*margin, и обрезает
// до ровно limit записей, чтобы не обрезать на каждом добавлении.
const DefaultCutMargin = 1.1

// ErrUnknownVariable возвращается при запросе незарегистрированной переменной.
var ErrUnknownVariable = fmt.Errorf("unknown variable")

// HistoryStore хранит упорядоченные последовательности значений
// всех отслеживаемых переменных.
//
// Инвариант: после каждого Append все последовательности имеют равную
// длину, индекс i во всех последовательностях соответствует i-й точке
// данных. Хранилище не потокобезопасно: доступ сериализуется ядром.
type HistoryStore struct {
	keys   []string // порядок регистрации переменных
	series map[string][]float64
}

// NewHistoryStore создаёт хранилище с пустыми последовательностями
// для заданного набора переменных.
func NewHistoryStore(variables []string) *HistoryStore {
	h := &HistoryStore{
		series: make(map[string][]float64, len(variables)),
	}
	for _, v := range variables {
		if _, ok := h.series[v]; ok {
			continue
		}
		h.keys = append(h.keys, v)
		h.series[v] = []float64{}
	}
	return h
}

// Keys возвращает имена переменных в порядке регистрации.
func (h *HistoryStore) Keys() []string {
	keys := make([]string, len(h.keys))
	copy(keys, h.keys)
	return keys
}

// Len возвращает текущую длину последовательностей.
func (h *HistoryStore) Len() int {
	if len(h.keys) == 0 {
		return 0
	}
	return len(h.series[h.keys[0]])
}

// Append добавляет значения точки данных во все последовательности.
//
// Если для какой-то переменной значения в точке нет, добавляется NaN,
// чтобы сохранить равную длину последовательностей.
func (h *HistoryStore) Append(dp models.Datapoint) {
	for _, key := range h.keys {
		value, ok := dp[key]
		if !ok {
			h.series[key] = append(h.series[key], math.NaN())
			continue
		}
		h.series[key] = append(h.series[key], float64(value))
	}
}

// Get возвращает срез последовательности переменной key.
//
// Семантика start/stop повторяет срезы с отрицательными индексами:
// start=-200 означает последние 200 записей, stop=End — до конца.
func (h *HistoryStore) Get(key string, start, stop int) ([]float64, error) {
	seq, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, key)
	}
	lo, hi := sliceBounds(len(seq), start, stop)
	out := make([]float64, hi-lo)
	copy(out, seq[lo:hi])
	return out, nil
}

// GetXY возвращает выровненные срезы для построения графика.
//
// Если xKey пуст, возвращается только последовательность y (ось x
// подразумевается индексной).
func (h *HistoryStore) GetXY(yKey, xKey string, start, stop int) (y, x []float64, err error) {
	y, err = h.Get(yKey, start, stop)
	if err != nil {
		return nil, nil, err
	}
	if xKey == "" {
		return y, nil, nil
	}
	x, err = h.Get(xKey, start, stop)
	if err != nil {
		return nil, nil, err
	}
	return y, x, nil
}

// TruncateIfNeeded обрезает все последовательности до последних limit
// записей, если длина превысила limit*margin. limit=0 отключает обрезку.
//
// Возвращает true, если обрезка произошла.
func (h *HistoryStore) TruncateIfNeeded(limit int, margin float64) bool {
	if limit <= 0 {
		return false
	}
	if float64(h.Len()) <= float64(limit)*margin {
		return false
	}
	for _, key := range h.keys {
		seq := h.series[key]
		h.series[key] = seq[len(seq)-limit:]
	}
	return true
}

// Data возвращает копию всех последовательностей (для сохранения в файл).
func (h *HistoryStore) Data() map[string][]float64 {
	out := make(map[string][]float64, len(h.keys))
	for _, key := range h.keys {
		seq := make([]float64, len(h.series[key]))
		copy(seq, h.series[key])
		out[key] = seq
	}
	return out
}

// sliceBounds нормализует индексы start/stop к границам [lo, hi].
func sliceBounds(n, start, stop int) (lo, hi int) {
	lo = start
	if lo < 0 {
		lo = n + lo
	}
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi = stop
	if hi == End {
		hi = n
	} else if hi < 0 {
		hi = n + hi
	}
	if hi < 0 {
		hi = 0
	}
	if hi > n {
		hi = n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
