package datalog

import (
	"math"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

// VariableBuffer накапливает сырые значения одной переменной,
// полученные с момента последней точки данных.
//
// Буфер не потокобезопасен: доступ к нему сериализуется ядром (Core).
type VariableBuffer struct {
	values  []float64
	reduced float64 // последнее сведённое значение
	hasPrev bool    // было ли хоть одно сведение
}

// NewVariableBuffer создаёт и возвращает новый пустой буфер.
func NewVariableBuffer() *VariableBuffer {
	return &VariableBuffer{}
}

// Accumulate добавляет сырое значение в буфер.
//
// nil означает отсутствующее значение и сохраняется как NaN.
func (b *VariableBuffer) Accumulate(value *float64) {
	if value == nil {
		b.values = append(b.values, math.NaN())
		return
	}
	b.values = append(b.values, *value)
}

// Len возвращает количество накопленных значений.
func (b *VariableBuffer) Len() int {
	return len(b.values)
}

// Reduce сводит накопленные значения к одному по режиму mode.
//
// ValuingLast возвращает последнее добавленное значение, ValuingAverage —
// среднее арифметическое всех числовых значений (NaN игнорируются).
// Пустой буфер или буфер из одних NaN сводится к NaN, ошибок не бывает.
// Результат запоминается для возможного повторения при Reset.
func (b *VariableBuffer) Reduce(mode models.ValuingMode) float64 {
	var result float64
	switch mode {
	case models.ValuingAverage:
		sum := 0.0
		count := 0
		for _, v := range b.values {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}
		if count == 0 {
			result = math.NaN()
		} else {
			result = sum / float64(count)
		}
	default: // ValuingLast
		if len(b.values) == 0 {
			result = math.NaN()
		} else {
			result = b.values[len(b.values)-1]
		}
	}
	b.reduced = result
	b.hasPrev = true
	return result
}

// Reset очищает буфер после создания точки данных.
//
// Если repeatLast установлен и ранее было сведённое значение, буфер
// заполняется этим единственным значением, так что следующий Reduce
// без новых данных вернёт его же. Иначе буфер остаётся пустым и
// следующий Reduce вернёт NaN.
func (b *VariableBuffer) Reset(repeatLast bool) {
	b.values = b.values[:0]
	if repeatLast && b.hasPrev {
		b.values = append(b.values, b.reduced)
	}
}
