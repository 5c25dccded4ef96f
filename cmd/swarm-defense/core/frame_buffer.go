package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// ProgressUpdate is the latest known state of a running scenario
type ProgressUpdate struct {
	ScenarioID     uuid.UUID
	Status         string
	Progress       float64
	SimTime        float64
	FramesRecorded int
	ActiveFriendly int
	ActiveEnemy    int
	LastModified   time.Time
}

// ProgressSink persists progress updates. Implemented by the storage layer.
type ProgressSink interface {
	SaveProgress(ctx context.Context, update ProgressUpdate) error
}

// BufferStats tracks flush statistics
type BufferStats struct {
	Pending       int
	BatchesSent   int64
	UpdatesSent   int64
	UpdatesFailed int64
	LastBatchTime time.Time
	LastError     error
}

// FrameBuffer batches per-scenario progress updates so the stepping loop never
// blocks on persistence. Only the newest update per scenario is kept.
type FrameBuffer struct {
	sink          ProgressSink
	updates       map[uuid.UUID]*ProgressUpdate
	maxBatchSize  int
	flushInterval time.Duration
	stats         BufferStats
	mu            sync.Mutex
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewFrameBuffer creates a buffer flushing to sink every flushInterval
func NewFrameBuffer(sink ProgressSink, maxBatchSize int, flushInterval time.Duration) *FrameBuffer {
	if maxBatchSize <= 0 {
		maxBatchSize = 64
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &FrameBuffer{
		sink:          sink,
		updates:       make(map[uuid.UUID]*ProgressUpdate),
		maxBatchSize:  maxBatchSize,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the automatic flush goroutine
func (fb *FrameBuffer) Start(ctx context.Context) {
	fb.wg.Add(1)
	go func() {
		defer fb.wg.Done()

		ticker := time.NewTicker(fb.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-fb.stopChan:
				return
			case <-ticker.C:
				if err := fb.Flush(ctx); err != nil {
					logger.Warnf("Error flushing progress updates: %v", err)
				}
			}
		}
	}()
}

// Stop stops the flush goroutine and pushes whatever is still pending
func (fb *FrameBuffer) Stop(ctx context.Context) {
	fb.stopOnce.Do(func() { close(fb.stopChan) })
	fb.wg.Wait()
	if err := fb.Flush(ctx); err != nil {
		logger.Warnf("Final progress flush failed: %v", err)
	}
}

// Queue records the newest progress for a scenario
func (fb *FrameBuffer) Queue(update ProgressUpdate) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if update.LastModified.IsZero() {
		update.LastModified = time.Now()
	}
	u := update
	fb.updates[update.ScenarioID] = &u

	if len(fb.updates) >= fb.maxBatchSize {
		go func() {
			if err := fb.Flush(context.Background()); err != nil {
				logger.Warnf("Error auto-flushing progress updates: %v", err)
			}
		}()
	}
}

// Flush sends all pending updates to the sink
func (fb *FrameBuffer) Flush(ctx context.Context) error {
	fb.mu.Lock()
	if len(fb.updates) == 0 {
		fb.mu.Unlock()
		return nil
	}

	updates := fb.updates
	fb.updates = make(map[uuid.UUID]*ProgressUpdate)
	fb.mu.Unlock()

	var (
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	semaphore := make(chan struct{}, 4)

	for id, update := range updates {
		wg.Add(1)
		go func(id uuid.UUID, u *ProgressUpdate) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := fb.sink.SaveProgress(ctx, *u); err != nil {
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()

				// re-queue unless a newer update already arrived
				fb.mu.Lock()
				if _, exists := fb.updates[id]; !exists {
					fb.updates[id] = u
				}
				fb.mu.Unlock()
			}
		}(id, update)
	}
	wg.Wait()

	fb.mu.Lock()
	fb.stats.BatchesSent++
	fb.stats.UpdatesSent += int64(len(updates) - len(errs))
	fb.stats.UpdatesFailed += int64(len(errs))
	fb.stats.LastBatchTime = time.Now()
	if len(errs) > 0 {
		fb.stats.LastError = errs[0]
	}
	fb.mu.Unlock()

	if len(errs) > 0 {
		logger.Debugf("Failed to persist %d/%d progress updates", len(errs), len(updates))
		return errors.Join(errs...)
	}

	logger.Debugf("Flushed %d progress updates", len(updates))
	return nil
}

// Stats returns current buffer statistics
func (fb *FrameBuffer) Stats() BufferStats {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	s := fb.stats
	s.Pending = len(fb.updates)
	return s
}

// PendingCount returns the number of scenarios with unsent progress
func (fb *FrameBuffer) PendingCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.updates)
}
