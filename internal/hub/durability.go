package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sumanthd032/collabhub/internal/observability"
)

// DurabilityConfig bundles the Durability Writer's tunables.
type DurabilityConfig struct {
	CoalesceWindow          time.Duration
	StoreCallTimeout        time.Duration
	BackoffBase             time.Duration
	BackoffCap              time.Duration
	CurrentRowHighWaterMark int
	HistoryHardCap          int
}

// docBuffer is the per-document pending-write state. Access is guarded
// by DurabilityWriter.mu; only the writer's own flush goroutines and
// Submit (single-producer per document, since one Session owns each
// document) ever touch it.
type docBuffer struct {
	pendingCurrent *EditRecord
	historyQueue   []EditRecord
	flushTimer     *time.Timer
	inFlight       bool
	degraded       bool
}

// DurabilityWriter is the write-through sink from Document Session to
// the external DocumentStore. Submit is non-blocking from the
// Session's point of view; records are buffered per document and
// flushed on a coalescing window, retried with backoff on transient
// store failure, never reordered.
type DurabilityWriter struct {
	store DocumentStore
	cfg   DurabilityConfig
	fan   ReplicaFanout

	mu      sync.Mutex
	buffers map[DocumentId]*docBuffer

	degradedDocs atomic.Int64
}

// ReplicaFanout is the optional cross-replica cache-invalidation signal
// (see SPEC_FULL.md §7). A no-op implementation disables it entirely.
type ReplicaFanout interface {
	PublishUpdated(ctx context.Context, id DocumentId, timestamp int64)
}

// NewDurabilityWriter constructs a DurabilityWriter against store,
// optionally publishing to fan (pass NoopFanout{} to disable).
func NewDurabilityWriter(store DocumentStore, fan ReplicaFanout, cfg DurabilityConfig) *DurabilityWriter {
	return &DurabilityWriter{
		store:   store,
		cfg:     cfg,
		fan:     fan,
		buffers: make(map[DocumentId]*docBuffer),
	}
}

// DegradedDocumentCount reports how many documents currently have a
// history sub-buffer that exceeded its hard cap (operator signal).
func (w *DurabilityWriter) DegradedDocumentCount() int64 {
	return w.degradedDocs.Load()
}

// Submit enqueues rec to its document's buffer. Never blocks.
func (w *DurabilityWriter) Submit(rec EditRecord) {
	w.mu.Lock()
	buf, ok := w.buffers[rec.DocumentId]
	if !ok {
		buf = &docBuffer{}
		w.buffers[rec.DocumentId] = buf
	}

	// Coalescing: the latest current-row write always replaces any
	// earlier one still waiting on a flush, which is also how the
	// current-row high-water mark is enforced in practice — at most
	// one pending current-row write ever accumulates per document, far
	// under CurrentRowHighWaterMark (kept as a documented, named limit
	// per the spec rather than a counter that could ever be exceeded
	// by this design; see DESIGN.md).
	recCopy := rec
	buf.pendingCurrent = &recCopy

	if len(buf.historyQueue) >= w.cfg.HistoryHardCap {
		drop := len(buf.historyQueue) - w.cfg.HistoryHardCap + 1
		buf.historyQueue = buf.historyQueue[drop:]
		if !buf.degraded {
			buf.degraded = true
			w.degradedDocs.Add(1)
			observability.Logger().Error("history sub-buffer hard cap exceeded, retaining newest entries only",
				"document_id", rec.DocumentId.String(), "cap", w.cfg.HistoryHardCap)
		}
	}
	buf.historyQueue = append(buf.historyQueue, rec)

	docID := rec.DocumentId
	if buf.flushTimer == nil && !buf.inFlight {
		buf.flushTimer = time.AfterFunc(w.cfg.CoalesceWindow, func() { w.flush(docID) })
	}
	w.mu.Unlock()
}

// flush pops the current pending state for docID and writes it
// through to the store. It never runs two flushes for the same
// document concurrently, which is what keeps submission order intact
// across flush cycles.
func (w *DurabilityWriter) flush(docID DocumentId) {
	w.mu.Lock()
	buf, ok := w.buffers[docID]
	if !ok || buf.inFlight {
		if ok {
			buf.flushTimer = nil
		}
		w.mu.Unlock()
		return
	}
	buf.inFlight = true
	buf.flushTimer = nil
	current := buf.pendingCurrent
	history := buf.historyQueue
	buf.pendingCurrent = nil
	buf.historyQueue = nil
	w.mu.Unlock()

	w.doFlush(context.Background(), docID, current, history)

	w.mu.Lock()
	buf.inFlight = false
	if buf.pendingCurrent != nil || len(buf.historyQueue) > 0 {
		buf.flushTimer = time.AfterFunc(0, func() { w.flush(docID) })
	}
	w.mu.Unlock()
}

// Flush synchronously drains every document's buffered writes, bounded
// by ctx's deadline. Called at shutdown (see cmd/collabhub) under a
// ShutdownDrainMs timeout so records still sitting behind a pending
// coalesce timer are written through rather than abandoned when the
// process exits.
func (w *DurabilityWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	docIDs := make([]DocumentId, 0, len(w.buffers))
	for id := range w.buffers {
		docIDs = append(docIDs, id)
	}
	w.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range docIDs {
		wg.Add(1)
		go func(id DocumentId) {
			defer wg.Done()
			w.flushOne(ctx, id)
		}(id)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-ctx.Done():
		observability.Logger().Warn("shutdown drain deadline exceeded, some durability writes may be incomplete")
	}
}

// flushOne drains docID's buffer under ctx. If a flush is already in
// flight (the coalesce timer raced in concurrently) it waits that one
// out rather than running two at once, then repeats until the buffer
// is empty or ctx is done, so a Submit that lands mid-drain still gets
// written.
func (w *DurabilityWriter) flushOne(ctx context.Context, docID DocumentId) {
	for {
		w.mu.Lock()
		buf, ok := w.buffers[docID]
		if !ok {
			w.mu.Unlock()
			return
		}
		if buf.inFlight {
			w.mu.Unlock()
			select {
			case <-time.After(10 * time.Millisecond):
				continue
			case <-ctx.Done():
				return
			}
		}
		if buf.pendingCurrent == nil && len(buf.historyQueue) == 0 {
			w.mu.Unlock()
			return
		}
		if buf.flushTimer != nil {
			buf.flushTimer.Stop()
			buf.flushTimer = nil
		}
		buf.inFlight = true
		current := buf.pendingCurrent
		history := buf.historyQueue
		buf.pendingCurrent = nil
		buf.historyQueue = nil
		w.mu.Unlock()

		w.doFlush(ctx, docID, current, history)

		w.mu.Lock()
		buf.inFlight = false
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}
}

func (w *DurabilityWriter) doFlush(ctx context.Context, docID DocumentId, current *EditRecord, history []EditRecord) {
	if current != nil {
		err := w.retry(ctx, func(attemptCtx context.Context) error {
			return w.store.UpsertCurrent(attemptCtx, docID, current.ContentSnapshot, current.Timestamp)
		})
		if err == nil && w.fan != nil {
			w.fan.PublishUpdated(ctx, docID, current.Timestamp)
		}
	}

	// History is append-only and authoritative for audit: every record
	// is retried independently and in submission order, even if the
	// corresponding current-row write above was dropped by coalescing.
	for _, rec := range history {
		_ = w.retry(ctx, func(attemptCtx context.Context) error {
			return w.store.AppendHistory(attemptCtx, docID, rec.ContentSnapshot, rec.OriginatorAddress, rec.Timestamp)
		})
	}
}

// retry runs op with exponential backoff (base/cap per cfg, full
// jitter via the cenkalti/backoff default generator), retrying
// forever until it succeeds or ctx is canceled. Each attempt gets its
// own store-call-timeout deadline; retries never reorder records
// because doFlush only ever has one outstanding attempt at a time.
func (w *DurabilityWriter) retry(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.BackoffBase
	b.MaxInterval = w.cfg.BackoffCap
	b.MaxElapsedTime = 0 // retry indefinitely; only ctx cancellation stops it
	b.Multiplier = 2.0
	b.RandomizationFactor = 1.0 // full jitter

	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.StoreCallTimeout)
		defer cancel()
		err := op(attemptCtx)
		if err != nil {
			observability.Logger().Warn("durability write failed, retrying", "error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// NoopFanout disables the replica-fanout adjunct.
type NoopFanout struct{}

func (NoopFanout) PublishUpdated(context.Context, DocumentId, int64) {}
