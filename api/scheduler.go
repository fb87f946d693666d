/*
scheduler.go - Automated day accounting scheduler

PURPOSE:
  Drives the two recurring jobs of the engine:
  - Aggregate upsert: refreshes the open day's roll-up every few hours
  - Day finalization: closes the ending business day at the cutover instant

DESIGN:
  - One background goroutine, ticker for the upsert, timer for the cutover
  - The cutover timer is re-aligned after every firing so clock drift and
    DST transitions cannot walk the finalizer away from the cutover hour
  - Job errors are logged, never propagated; the next firing retries
  - A firing that lands while the same job still runs is skipped quietly

CONFIGURATION:
  - UpsertInterval: How often to refresh the open day (default: 2 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMusterScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerFinalize / TriggerSnapshot (manual runs)
  - muster/engine.go: The jobs themselves
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/muster-engine/muster"
)

// MusterScheduler runs the periodic upsert and the cutover finalizer.
type MusterScheduler struct {
	Engine         *muster.Engine
	UpsertInterval time.Duration
	Enabled        bool

	ticker *time.Ticker
	timer  *time.Timer
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMusterScheduler creates a new scheduler around the engine.
func NewMusterScheduler(engine *muster.Engine) *MusterScheduler {
	return &MusterScheduler{
		Engine:         engine,
		UpsertInterval: 2 * time.Hour,
		Enabled:        true,
		stop:           make(chan bool),
	}
}

// Start begins the scheduler.
func (ms *MusterScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ms.ticker = time.NewTicker(ms.UpsertInterval)
	next := ms.Engine.Clock.NextCutover(time.Now())
	ms.timer = time.NewTimer(time.Until(next))
	ms.wg.Add(1)

	go ms.run()

	log.Printf("[Scheduler] Started: upsert every %v, next finalization at %v",
		ms.UpsertInterval, next)
}

// Stop stops the scheduler.
func (ms *MusterScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		ms.timer.Stop()
		close(ms.stop)
		ms.wg.Wait()
		ms.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ms *MusterScheduler) run() {
	defer ms.wg.Done()

	// Refresh the open day immediately on start
	ms.runUpsert()

	for {
		select {
		case <-ms.ticker.C:
			ms.runUpsert()
		case <-ms.timer.C:
			ms.runFinalize()
			next := ms.Engine.Clock.NextCutover(time.Now())
			ms.timer.Reset(time.Until(next))
			log.Printf("[Scheduler] Next finalization at %v", next)
		case <-ms.stop:
			return
		}
	}
}

func (ms *MusterScheduler) runUpsert() {
	ctx := context.Background()

	agg, err := ms.Engine.UpsertAggregate(ctx)
	if err != nil {
		if muster.IsJobBusy(err) {
			return
		}
		log.Printf("[Scheduler] Error upserting aggregate: %v", err)
		return
	}
	log.Printf("[Scheduler] Upserted aggregate for %s: %d/%d present",
		agg.DateLabel, agg.Present, agg.Total)
}

func (ms *MusterScheduler) runFinalize() {
	ctx := context.Background()

	result, err := ms.Engine.FinalizeDay(ctx)
	if err != nil {
		if muster.IsJobBusy(err) {
			return
		}
		log.Printf("[Scheduler] Error finalizing day: %v", err)
		return
	}
	log.Printf("[Scheduler] Finalized %s (%d personnel reset, run %s)",
		result.DateLabel, result.PersonnelReset, result.RunID)
}

// RunNow triggers an immediate upsert (for testing/admin).
func (ms *MusterScheduler) RunNow() {
	ms.runUpsert()
}

// GetNextFinalizeTime returns when the next finalization will fire.
func (ms *MusterScheduler) GetNextFinalizeTime() time.Time {
	return ms.Engine.Clock.NextCutover(time.Now())
}
