package journal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// gooseMu serializes migrations; goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// SQL persists events in a relational database with ACID appends.
type SQL struct {
	db      *sqlx.DB
	driver  string
	tracer  trace.Tracer
	mu      sync.Mutex
	lastSeq int64
}

// OpenSQL connects to dsn with driver ("postgres" or "sqlite3") and migrates the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer connection avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s journal: %w", driver, err)
	}
	if err := migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}

	j := &SQL{
		db:     db,
		driver: driver,
		tracer: otel.Tracer("libraledger/journal"),
	}
	if err := db.GetContext(ctx, &j.lastSeq, `SELECT COALESCE(MAX(seq), 0) FROM journal_events`); err != nil {
		db.Close()
		return nil, fmt.Errorf("query last sequence: %w", err)
	}
	return j, nil
}

func migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations/"+driver); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// Append writes one event with the next sequence number.
func (j *SQL) Append(ctx context.Context, eventType string, payload interface{}) (Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("journal.driver", j.driver),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	j.mu.Lock()
	defer j.mu.Unlock()

	event, err := newEvent(j.lastSeq+1, eventType, payload)
	if err != nil {
		span.RecordError(err)
		return Event{}, err
	}

	// Payload is bound as text so the postgres driver does not send it as bytea.
	_, err = j.db.ExecContext(ctx, j.db.Rebind(`
		INSERT INTO journal_events (id, seq, event_type, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`), event.ID, event.Seq, event.Type, string(event.Payload), event.RecordedAt)
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return Event{}, fmt.Errorf("append seq %d: %w", event.Seq, ErrDuplicateSeq)
		}
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	j.lastSeq = event.Seq
	span.SetAttributes(attribute.Int64("event.seq", event.Seq))
	return event, nil
}

// Load returns all events ordered by sequence.
func (j *SQL) Load(ctx context.Context) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.String("journal.driver", j.driver)),
	)
	defer span.End()

	var events []Event
	err := j.db.SelectContext(ctx, &events, `
		SELECT id, seq, event_type, payload, recorded_at
		FROM journal_events
		ORDER BY seq ASC
	`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func (j *SQL) Close() error {
	return j.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
