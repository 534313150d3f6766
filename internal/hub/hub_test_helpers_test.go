package hub

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a settable Clock for deterministic idle-retirement tests.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func newFakeClock(start int64) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

// fakeStore is an in-memory DocumentStore for tests.
type fakeStore struct {
	mu      sync.Mutex
	current map[DocumentId]struct {
		content      string
		lastModified int64
	}
	history map[DocumentId][]EditRecord

	// failLoads, when >0, makes the next N Load calls fail.
	failLoads int
	// failUpserts, when >0, makes the next N UpsertCurrent calls fail.
	failUpserts int

	upsertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		current: make(map[DocumentId]struct {
			content      string
			lastModified int64
		}),
		history: make(map[DocumentId][]EditRecord),
	}
}

func (f *fakeStore) Load(ctx context.Context, id DocumentId) (string, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads > 0 {
		f.failLoads--
		return "", 0, false, context.DeadlineExceeded
	}
	row, ok := f.current[id]
	if !ok {
		return "", 0, false, nil
	}
	return row.content, row.lastModified, true, nil
}

func (f *fakeStore) UpsertCurrent(ctx context.Context, id DocumentId, content string, updatedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.failUpserts > 0 {
		f.failUpserts--
		return context.DeadlineExceeded
	}
	f.current[id] = struct {
		content      string
		lastModified int64
	}{content, updatedAt}
	return nil
}

func (f *fakeStore) AppendHistory(ctx context.Context, id DocumentId, content, originatorAddress string, timestamp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[id] = append(f.history[id], EditRecord{
		DocumentId:        id,
		ContentSnapshot:   content,
		OriginatorAddress: originatorAddress,
		Timestamp:         timestamp,
	})
	return nil
}

func (f *fakeStore) ListHistory(ctx context.Context, id DocumentId) ([]EditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EditRecord, len(f.history[id]))
	copy(out, f.history[id])
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (f *fakeStore) currentContent(id DocumentId) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.current[id]
	return row.content, ok
}

// fakeChannel is an in-memory Channel: inbound frames are fed through
// push, outbound frames written by the session land on sent.
type fakeChannel struct {
	inbound chan []byte
	sent    chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		inbound: make(chan []byte, 32),
		sent:    make(chan []byte, 32),
		closed:  make(chan struct{}),
	}
}

func (c *fakeChannel) push(frame []byte) {
	select {
	case c.inbound <- frame:
	case <-c.closed:
	}
}

func (c *fakeChannel) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.closed:
		return nil, context.Canceled
	}
}

func (c *fakeChannel) WriteMessage(data []byte) error {
	select {
	case c.sent <- data:
		return nil
	case <-c.closed:
		return context.Canceled
	}
}

func (c *fakeChannel) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeWriter is a durabilitySubmitter that records every submitted
// record without touching a store, for tests that only care about the
// Session/Registry plumbing.
type fakeWriter struct {
	mu      sync.Mutex
	records []EditRecord
}

func (w *fakeWriter) Submit(rec EditRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec)
}

func (w *fakeWriter) submitted() []EditRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]EditRecord, len(w.records))
	copy(out, w.records)
	return out
}

// fakeFanout records every PublishUpdated call.
type fakeFanout struct {
	mu    sync.Mutex
	calls []DocumentId
}

func (f *fakeFanout) PublishUpdated(ctx context.Context, id DocumentId, timestamp int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
}

func (f *fakeFanout) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		IdleGraceMillis:       50,
		OutboundQueueCapacity: 4,
		MaxContentScalars:     MaxContentScalars,
		ChannelWriteTimeout:   time.Second,
		TickInterval:          10 * time.Millisecond,
		StoreCallTimeout:      time.Second,
	}
}
