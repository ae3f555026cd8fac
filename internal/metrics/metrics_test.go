package metrics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pixelock/pixelock/internal/app"
)

const testSummary = "janitor_purged_per_cycle"

// openTempDB creates an isolated sqlite database file for tests.
func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "m.db")
	db, err := sql.Open("sqlite3", p)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// drainEvents applies pending channel events when the loop is not running.
func drainEvents(m *Manager) {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		default:
			return
		}
	}
}

func TestManagerIncFlush(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: 50 * time.Millisecond})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	m.Inc(app.CounterTicketsCreated, 1)
	m.Inc(app.CounterTicketsCreated, 2)
	drainEvents(m)
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, app.CounterTicketsCreated)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected 3 got %d", v)
	}
}

func TestManagerObserveFlushSnapshot(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: 500 * time.Millisecond})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	m.Observe(testSummary, 5)
	m.Observe(testSummary, 7)
	drainEvents(m)
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	counters, summaries, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(counters) != 0 {
		t.Fatalf("unexpected counters %+v", counters)
	}
	agg, ok := summaries[testSummary]
	if !ok {
		t.Fatalf("missing summary")
	}
	if agg.count != 2 || agg.sum != 12 || agg.min != 5 || agg.max != 7 {
		t.Fatalf("bad summary %+v", agg)
	}
}

func TestManagerSummaryLayering(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: time.Hour})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	// Persisted state from prior runs: count=3, sum=30, min=5, max=20.
	if _, err := db.ExecContext(ctx, `INSERT INTO metrics_summaries(name,count,sum,min,max) VALUES(?,?,?,?,?)`, testSummary, 3, 30, 5, 20); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	m.Observe(testSummary, 4)
	m.Observe(testSummary, 25)
	m.Observe(testSummary, 6)
	drainEvents(m)
	_, summaries, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	agg, ok := summaries[testSummary]
	if !ok {
		t.Fatalf("missing layered summary")
	}
	if agg.count != 6 || agg.sum != 65 || agg.min != 4 || agg.max != 25 {
		t.Fatalf("unexpected layered summary %+v", agg)
	}
}

func TestManagerStopFinalFlush(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: time.Hour}) // long interval so we rely on Stop
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	m.Inc(app.CounterTicketsUnlocked, 4)
	drainEvents(m)
	m.Stop(ctx)
	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, app.CounterTicketsUnlocked)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 4 {
		t.Fatalf("expected 4 got %d", v)
	}
}

func TestManagerSnapshotMergesDeltas(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: time.Hour})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO metrics_counters(name,value) VALUES(?,10)`, app.CounterTicketsCreated); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m.Inc(app.CounterTicketsCreated, 5)
	drainEvents(m)
	cnt, _, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if cnt[app.CounterTicketsCreated] != 15 {
		t.Fatalf("expected merged 15 got %d", cnt[app.CounterTicketsCreated])
	}
}

func TestManagerStartIdempotent(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{FlushInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	m.Start(ctx)
	m.Start(ctx) // second call should be a no-op
	m.Inc(app.CounterPINFailures, 1)
	time.Sleep(20 * time.Millisecond) // allow at least one flush tick
	m.Stop(context.Background())
	row := db.QueryRowContext(context.Background(), `SELECT value FROM metrics_counters WHERE name=?`, app.CounterPINFailures)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v == 0 {
		t.Fatalf("expected counter increment persisted")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	m.Inc(app.CounterObjectsUploaded, 2)
	drainEvents(m)
	m.Stop(ctx) // must flush without a running loop
	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, app.CounterObjectsUploaded)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected 2 got %d", v)
	}
}

func TestManagerChannelFullDrop(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	m.events = make(chan event, 1)
	m.Inc(app.CounterTicketsCreated, 1)   // fills buffer
	m.Inc(app.CounterTicketsCreated, 100) // dropped
	ev := <-m.events
	m.apply(ev)
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, app.CounterTicketsCreated)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected only first event persisted got %d", v)
	}
}

func TestManagerIncNegativeIgnored(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	m.Inc(app.CounterTicketsCreated, -5)
	select {
	case ev := <-m.events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	rows, err := db.QueryContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, app.CounterTicketsCreated)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	if rows.Next() {
		t.Fatalf("expected no row for ignored negative inc")
	}
}

func TestManagerFlushEmpty(t *testing.T) {
	db := openTempDB(t)
	m := New(db, Config{})
	ctx := context.Background()
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush empty: %v", err)
	}
}
