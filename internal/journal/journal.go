// Package journal records completed lending operations so state can be rebuilt on restart.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrDuplicateSeq      = errors.New("journal sequence already written")
	ErrUnsupportedDriver = errors.New("unsupported journal driver")
)

// Event is one journaled operation.
type Event struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Seq        int64     `json:"seq" db:"seq"`
	Type       string    `json:"type" db:"event_type"`
	Payload    []byte    `json:"payload" db:"payload"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(dst interface{}) error {
	if err := jsoniter.ConfigFastest.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s event %d: %w", e.Type, e.Seq, err)
	}
	return nil
}

// Reader yields every journaled event in sequence order.
type Reader interface {
	Load(ctx context.Context) ([]Event, error)
}

// Journal is an append-only log of operations.
type Journal interface {
	Reader
	Append(ctx context.Context, eventType string, payload interface{}) (Event, error)
	Close() error
}

func newEvent(seq int64, eventType string, payload interface{}) (Event, error) {
	data, err := jsoniter.ConfigFastest.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Seq:        seq,
		Type:       eventType,
		Payload:    data,
		RecordedAt: time.Now().UTC(),
	}, nil
}

// Open returns the journal for driver. "memory" keeps events in process only;
// "postgres" and "sqlite3" persist them at dsn.
func Open(ctx context.Context, driver, dsn string) (Journal, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverPostgres, DriverSQLite:
		return OpenSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)
