package journal

import (
	"context"
	"slices"
	"sync"
)

// Memory is a Journal that lives only as long as the process.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, eventType string, payload interface{}) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, err := newEvent(int64(len(m.events))+1, eventType, payload)
	if err != nil {
		return Event{}, err
	}
	m.events = append(m.events, event)
	return event, nil
}

func (m *Memory) Load(context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events), nil
}

func (m *Memory) Close() error { return nil }
