// Package pool реализует типизированный пул объектов поверх sync.Pool.
//
// Объекты, возвращаемые в пул, должны реализовывать метод Reset(),
// сбрасывающий их состояние перед повторным использованием.
package pool

import "sync"

// Resettable — объект, умеющий сбрасывать своё состояние.
type Resettable interface {
	Reset()
}

// Pool — типизированный пул объектов с автоматическим сбросом при возврате.
type Pool[T Resettable] struct {
	inner sync.Pool
}

// New создаёт пул, использующий newFn для создания новых объектов.
func New[T Resettable](newFn func() T) *Pool[T] {
	return &Pool[T]{
		inner: sync.Pool{
			New: func() any { return newFn() },
		},
	}
}

// Get возвращает объект из пула или создаёт новый.
func (p *Pool[T]) Get() T {
	return p.inner.Get().(T)
}

// Put сбрасывает объект и возвращает его в пул.
func (p *Pool[T]) Put(obj T) {
	obj.Reset()
	p.inner.Put(obj)
}
