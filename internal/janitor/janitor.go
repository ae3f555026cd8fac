// Package janitor implements background cleanup of dead tickets and orphan
// objects. It runs independently from the request path so lifecycle hygiene
// (periodic purging, reconciliation) never blocks an unlock.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Counter and summary names emitted through the external Collector.
const (
	counterTicketsPurged = "tickets_purged_total"
	counterOrphansSwept  = "objects_orphaned_total"
	summaryPurgedPerRun  = "janitor_purged_per_cycle"
)

// Store is the ticket-side view the Janitor needs: purge rows that can never
// be redeemed again, and enumerate the object paths live rows still reference.
type Store interface {
	// PurgeDead deletes used tickets and tickets expired before the cutoff,
	// returning the object paths the deleted rows referenced.
	PurgeDead(ctx context.Context, before time.Time) ([]string, error)
	// ListObjectPaths returns the object paths of all remaining tickets.
	ListObjectPaths(ctx context.Context) ([]string, error)
}

// Media is the object-side view: enumerate stored keys and delete them.
type Media interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Collector receives per-cycle counters and summaries. Optional.
type Collector interface {
	Inc(name string, delta int64)
	Observe(name string, v int64)
}

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a cycle begins
	Grace    time.Duration // keep expired rows this long for late expire calls
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
}

// Metrics accumulates in-memory counters for operational insight.
type Metrics struct {
	mu                  sync.Mutex
	Cycles              uint64
	Purged              uint64
	Orphans             uint64
	CycleLastDurationMS int64
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Cycles              uint64
	Purged              uint64
	Orphans             uint64
	CycleLastDurationMS int64
}

func (m *Metrics) addPurged(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Purged += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) addOrphans(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Orphans += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) recordCycle(d time.Duration) {
	m.mu.Lock()
	m.Cycles++
	m.CycleLastDurationMS = d.Milliseconds()
	m.mu.Unlock()
}

// Janitor encapsulates the background cleanup loop.
type Janitor struct {
	store     Store
	media     Media
	collector Collector
	cfg       Config
	metrics   *Metrics

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor. collector may be nil.
func New(store Store, media Media, collector Collector, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		store:     store,
		media:     media,
		collector: collector,
		cfg:       cfg,
		metrics:   &Metrics{},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	} // already started
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// MetricsSnapshot returns a copy of current metrics.
func (j *Janitor) MetricsSnapshot() MetricsView {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	return MetricsView{
		Cycles:              j.metrics.Cycles,
		Purged:              j.metrics.Purged,
		Orphans:             j.metrics.Orphans,
		CycleLastDurationMS: j.metrics.CycleLastDurationMS,
	}
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one purge + reconcile pass.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")
	cutoff := time.Now().UTC().Add(-j.cfg.Grace)

	purged := j.purgeDead(ctx, cutoff, log)
	orphans := j.reconcile(ctx, log)

	j.metrics.addPurged(purged)
	j.metrics.addOrphans(orphans)
	j.metrics.recordCycle(time.Since(start))
	if j.collector != nil {
		j.collector.Inc(counterTicketsPurged, int64(purged))
		j.collector.Inc(counterOrphansSwept, int64(orphans))
		j.collector.Observe(summaryPurgedPerRun, int64(purged))
	}
	log.Info("cycle complete", "purged", purged, "orphans", orphans, "ms", time.Since(start).Milliseconds())
}

// purgeDead removes dead ticket rows and their backing objects. Object
// deletion is best-effort; a miss is picked up by the next reconcile pass.
func (j *Janitor) purgeDead(ctx context.Context, cutoff time.Time, log *slog.Logger) int {
	paths, err := j.store.PurgeDead(ctx, cutoff)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("purge", "error", err)
		}
		return 0
	}
	for _, p := range paths {
		if derr := j.media.Delete(ctx, p); derr != nil && !errors.Is(derr, context.Canceled) {
			log.Warn("purge object", "path", p, "error", derr)
		}
	}
	return len(paths)
}

// reconcile deletes stored objects no remaining ticket references. The media
// listing already excludes very fresh files, which keeps uploads that have
// not been ticketed yet out of the sweep.
func (j *Janitor) reconcile(ctx context.Context, log *slog.Logger) int {
	keys, err := j.media.List(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("reconcile list objects", "error", err)
		}
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	paths, err := j.store.ListObjectPaths(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("reconcile list tickets", "error", err)
		}
		return 0
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}
	removed := 0
	for _, k := range keys {
		if _, ok := referenced[k]; ok {
			continue
		}
		if derr := j.media.Delete(ctx, k); derr != nil {
			if !errors.Is(derr, context.Canceled) {
				log.Warn("reconcile delete", "key", k, "error", derr)
			}
			continue
		}
		removed++
	}
	return removed
}
