package pool

import (
	"testing"
)

// TestStruct — тестовая структура с методом Reset().
type TestStruct struct {
	Value  int
	Name   string
	Items  []int
	Active bool
}

func (ts *TestStruct) Reset() {
	ts.Value = 0
	ts.Name = ""
	ts.Items = ts.Items[:0]
	ts.Active = false
}

func TestPool_NewAndGet(t *testing.T) {
	p := New(func() *TestStruct {
		return &TestStruct{
			Items: make([]int, 0, 10),
		}
	})

	obj := p.Get()

	if obj == nil {
		t.Fatal("Expected non-nil object from pool")
	}

	if obj.Items == nil {
		t.Error("Expected Items slice to be initialized")
	}
}

func TestPool_PutCallsReset(t *testing.T) {
	p := New(func() *TestStruct {
		return &TestStruct{
			Items: make([]int, 0, 10),
		}
	})
	obj := p.Get()
	obj.Value = 42
	obj.Name = "test"
	obj.Items = append(obj.Items, 1, 2, 3)
	obj.Active = true

	p.Put(obj)
	obj2 := p.Get()

	if obj2.Value != 0 {
		t.Errorf("Expected Value=0 after reset, got %d", obj2.Value)
	}
	if obj2.Name != "" {
		t.Errorf("Expected Name='' after reset, got %s", obj2.Name)
	}
	if len(obj2.Items) != 0 {
		t.Errorf("Expected Items len=0 after reset, got %d", len(obj2.Items))
	}
	if cap(obj2.Items) != 10 {
		t.Errorf("Expected Items cap=10 (preserved), got %d", cap(obj2.Items))
	}
	if obj2.Active {
		t.Error("Expected Active=false after reset")
	}
}
