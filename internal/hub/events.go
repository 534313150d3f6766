package hub

type eventKind int

const (
	evAttach eventKind = iota
	evDetach
	evJoin
	evUpdate
	evSnapshot
	evShutdown
)

// sessionEvent is the single event type the Session worker dequeues
// and processes one at a time, giving every document a total order on
// its own mutations without cross-document contention. The spec's
// internal "Error" event (enqueue an Error to one participant only) has
// no producer outside the Session goroutine itself, so it is realized
// directly as a method call (handleError) rather than round-tripping
// through this queue.
type sessionEvent struct {
	kind eventKind

	participant *Participant

	// evAttach
	placeholderID ParticipantId

	// evJoin
	joinUserID ParticipantId

	// evUpdate
	updateContent string
	updateUserID  string

	// evSnapshot
	snapshotResult chan<- DocumentState
}

// enqueueEvent delivers an event to this session's single-consumer
// inbound queue. The queue is generously buffered so producers
// (readers, writers, the front door) never block on it in steady
// state; it is not used as a backpressure mechanism — that lives on
// the per-participant outbound queue.
func (s *Session) enqueueEvent(ev sessionEvent) {
	select {
	case s.inbound <- ev:
	case <-s.done:
	}
}
