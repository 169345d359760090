package state

import (
	"encoding/json"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore(42)
	if s.Get() != 42 {
		t.Errorf("Expected initial value 42, got %d", s.Get())
	}
	if s.ID() == "" {
		t.Error("Expected store to have an id")
	}
}

func TestStoreIdentityIsUnique(t *testing.T) {
	a := NewStore(1)
	b := NewStore(1)
	if a.ID() == b.ID() {
		t.Errorf("Expected distinct ids for distinct stores, got %s twice", a.ID())
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore(0)
	var received []int
	unsub := s.Subscribe(func(v int) {
		received = append(received, v)
	})

	s.Set(1)
	s.Set(1)
	s.Update(func(v int) int { return v + 1 })
	unsub()
	s.Set(10)

	if len(received) != 2 || received[0] != 1 || received[1] != 2 {
		t.Errorf("Expected [1 2], got %v", received)
	}
}

func TestStoreSubscribeAny(t *testing.T) {
	s := NewStore("a")
	var got any
	s.SubscribeAny(func(v any) { got = v })
	s.Set("b")
	if got != "b" {
		t.Errorf("Expected 'b', got %v", got)
	}
}

func TestStoreMarshalJSON(t *testing.T) {
	s := NewStore(map[string]int{"count": 3})
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != `{"count":3}` {
		t.Errorf("Expected value-only JSON, got %s", data)
	}
}

func TestStoreSatisfiesObservable(t *testing.T) {
	var _ Observable = NewStore(0)
}
