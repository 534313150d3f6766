package hub

import (
	"context"
	"sync"

	"github.com/sumanthd032/collabhub/internal/observability"
)

// entry tracks one live Session plus a reference count of participants
// attached or in the process of attaching to it. refCount is mutated
// only under Registry.mu, which is what lets get_or_create (Attach)
// and retire stay mutually exclusive per document without ever
// holding the lock across a channel send or store call.
type entry struct {
	session  *Session
	refCount int
}

// Registry is the single process-wide directory from DocumentId to
// Session. The critical section guarding the map is map-mutation
// only — no store I/O or channel work ever happens while r.mu is held.
type Registry struct {
	mu       sync.Mutex
	sessions map[DocumentId]*entry

	store  DocumentStore
	writer durabilitySubmitter
	clock  Clock
	cfg    SessionConfig
}

// NewRegistry constructs an empty Registry wired against store and
// writer for every Session it creates.
func NewRegistry(store DocumentStore, writer durabilitySubmitter, clock Clock, cfg SessionConfig) *Registry {
	return &Registry{
		sessions: make(map[DocumentId]*entry),
		store:    store,
		writer:   writer,
		clock:    clock,
		cfg:      cfg,
	}
}

// Attach is the Connection Front Door's entry point: lookup-or-create
// the Session for docID, then enqueue an Attach event for participant.
// If this call creates the Session, it maps the Session and then starts
// its worker, which performs the initial load from the DocumentStore
// (outside the lock) before serving events. On a load failure the
// worker answers the queued Attach with load_failed and removes its own
// map entry (removeDead).
func (r *Registry) Attach(ctx context.Context, docID DocumentId, p *Participant, placeholderID ParticipantId) *Session {
	r.mu.Lock()
	e, ok := r.sessions[docID]
	var isNew bool
	if !ok {
		s := newSession(docID, r.store, r.writer, r, r.clock, r.cfg)
		e = &entry{session: s}
		r.sessions[docID] = e
		isNew = true
	}
	e.refCount++
	r.mu.Unlock()

	// Queue the Attach before starting a new worker so that a failed
	// initial load always finds it in the queue.
	e.session.enqueueEvent(sessionEvent{kind: evAttach, participant: p, placeholderID: placeholderID})
	if isNew {
		go e.session.run(ctx)
	}
	return e.session
}

// onDetach decrements the reference count for docID's Session. Called
// by the Session worker once per processed Detach event. Attaches
// failed during a bootstrap-failure drain do not come through here;
// removeDead drops the whole entry instead.
func (r *Registry) onDetach(docID DocumentId, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[docID]
	if !ok || e.session != s {
		return
	}
	e.refCount--
}

// retire removes docID's mapping iff s is still the current Session
// for that document and its reference count is zero. It reports
// whether retirement happened; a false result means a concurrent
// Attach already raced in and retirement must be canceled.
func (r *Registry) retire(docID DocumentId, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[docID]
	if !ok || e.session != s || e.refCount != 0 {
		return false
	}
	delete(r.sessions, docID)
	observability.Logger().Debug("session retired", "document_id", docID.String())
	return true
}

// removeDead unconditionally removes docID's mapping if it still
// points at s, regardless of reference count. Used only when a
// Session's initial store load fails: the Session never finishes
// constructing itself, so the normal empty-and-idle retire() check
// does not apply.
func (r *Registry) removeDead(docID DocumentId, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[docID]; ok && e.session == s {
		delete(r.sessions, docID)
	}
}

// Lookup returns the live Session for docID, if any, without creating
// one. Used by the HTTP read path so a PUT can route through the
// live Session's Update event rather than writing the store directly.
func (r *Registry) Lookup(docID DocumentId) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[docID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Shutdown sends a Shutdown event to every live Session and waits (up
// to the caller's context deadline) for each to exit.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.session.enqueueEvent(sessionEvent{kind: evShutdown})
	}
	for _, e := range entries {
		select {
		case <-e.session.done:
		case <-ctx.Done():
			return
		}
	}
}
