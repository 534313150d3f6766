package hub

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sumanthd032/collabhub/internal/observability"
)

// errSessionGone is returned by Snapshot when the Session has already
// exited before the request could be served.
var errSessionGone = errors.New("session no longer live")

// durabilitySubmitter is the Session's view of the Durability Writer:
// a non-blocking submit of one accepted mutation.
type durabilitySubmitter interface {
	Submit(rec EditRecord)
}

// sessionRegistry is the Session's view of the Registry: the two
// short, map-mutation-only calls it needs to keep reference counting
// and idle retirement correct without ever holding a lock across a
// channel or store call.
type sessionRegistry interface {
	onDetach(id DocumentId, s *Session)
	retire(id DocumentId, s *Session) bool
	removeDead(id DocumentId, s *Session)
}

// SessionConfig bundles the tunables a Session needs; see
// internal/config for where these are sourced from the environment.
type SessionConfig struct {
	IdleGraceMillis       int64
	OutboundQueueCapacity int
	MaxContentScalars     int
	ChannelWriteTimeout   time.Duration
	TickInterval          time.Duration
	StoreCallTimeout      time.Duration
}

// Session is the per-document actor: a single goroutine that owns
// DocumentState and the set of Participants, serializing every
// mutation and broadcast through one inbound event queue. This is the
// design that replaces the source repository's coarse lock shared
// across channel writes and store calls (see DESIGN.md).
type Session struct {
	id    DocumentId
	state DocumentState

	// participants maps each live Participant to its current
	// identifier. Before JoinDocument is observed, the value is the
	// placeholder id minted by the front door.
	participants map[*Participant]ParticipantId

	idleSinceMillis int64
	isIdle          bool

	inbound chan sessionEvent
	done    chan struct{}

	clock    Clock
	writer   durabilitySubmitter
	registry sessionRegistry
	store    DocumentStore

	cfg SessionConfig
	log *slog.Logger
}

// newSession allocates a Session. It does not start the worker
// goroutine; callers must complete bootstrap (the initial store load)
// before serving events — run does this itself.
func newSession(id DocumentId, store DocumentStore, writer durabilitySubmitter, registry sessionRegistry, clock Clock, cfg SessionConfig) *Session {
	return &Session{
		id:           id,
		participants: make(map[*Participant]ParticipantId),
		inbound:      make(chan sessionEvent, 256),
		done:         make(chan struct{}),
		clock:        clock,
		writer:       writer,
		registry:     registry,
		store:        store,
		cfg:          cfg,
		log:          observability.WithFields("document_id", id.String()),
	}
}

// bootstrap loads initial content from the DocumentStore. It runs
// once, synchronously, before the Session enters its serve loop — the
// one sanctioned exception to "Session workers never block on I/O",
// because it happens at most once per Session lifetime and gates only
// the very first Attach.
func (s *Session) bootstrap(ctx context.Context) bool {
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreCallTimeout)
	defer cancel()

	content, lastModified, ok, err := s.store.Load(loadCtx, s.id)
	if err != nil {
		s.log.Warn("initial load failed", "error", err)
		return false
	}
	if ok {
		s.state = DocumentState{Content: content, Version: 0, LastModified: lastModified}
	} else {
		s.state = DocumentState{Content: "", Version: 0, LastModified: s.clock.NowMillis()}
	}
	return true
}

// run is the Session's single-consumer serve loop.
func (s *Session) run(ctx context.Context) {
	if !s.bootstrap(ctx) {
		s.failPendingAttaches()
		s.registry.removeDead(s.id, s)
		close(s.done)
		return
	}

	s.idleSinceMillis = s.clock.NowMillis()
	s.isIdle = true

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.inbound:
			s.handle(ev)
			if ev.kind == evShutdown {
				s.drainAndExit()
				close(s.done)
				return
			}
		case <-ticker.C:
			s.handleTick()
		}
	}
}

// Serve starts the reader and writer pumps for a Participant that has
// just been handed to Attach. The Connection Front Door calls this
// once per connection; from then on the Participant's own goroutines
// drive its lifecycle.
func (s *Session) Serve(p *Participant) {
	go s.runWriter(p)
	go s.runReader(p)
}

// SubmitUpdate exposes the Update path to the HTTP read/write surface (a PUT
// on /api/doc/{id}), so a whole-content replacement over plain HTTP
// funnels through the same merge rule and broadcast as a WebSocket
// UpdateDocument frame rather than bypassing the Session.
func (s *Session) SubmitUpdate(userID, content, remoteAddress string) error {
	if err := ValidateUpdate(content, userID, s.cfg.MaxContentScalars); err != nil {
		return err
	}
	ghost := &Participant{RemoteAddress: remoteAddress, outbound: make(chan []byte, 1), closed: make(chan struct{})}
	s.enqueueEvent(sessionEvent{kind: evUpdate, participant: ghost, updateUserID: userID, updateContent: content})
	return nil
}

// Snapshot returns the Session's current DocumentState.
func (s *Session) Snapshot() (DocumentState, error) {
	resultCh := make(chan DocumentState, 1)
	s.enqueueEvent(sessionEvent{kind: evSnapshot, snapshotResult: resultCh})
	select {
	case st := <-resultCh:
		return st, nil
	case <-s.done:
		return DocumentState{}, errSessionGone
	}
}

// failPendingAttaches drains any Attach events already queued at the
// moment bootstrap failed, telling each participant load_failed and
// closing its channel, per §4.4.
func (s *Session) failPendingAttaches() {
	for {
		select {
		case ev := <-s.inbound:
			if ev.kind == evAttach {
				s.sendLoadFailed(ev.participant)
			}
		default:
			return
		}
	}
}

// sendLoadFailed writes the load_failed frame straight to the channel
// (no Attach was processed, so nothing else is queued for it) and only
// then closes it, so closing cannot overtake the frame.
func (s *Session) sendLoadFailed(p *Participant) {
	if b, err := errorFrame("load_failed"); err == nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		_ = p.conn.WriteMessage(b)
	}
	p.close()
}

func (s *Session) handle(ev sessionEvent) {
	switch ev.kind {
	case evAttach:
		s.handleAttach(ev.participant, ev.placeholderID)
	case evDetach:
		s.handleDetach(ev.participant)
	case evJoin:
		s.handleJoin(ev.participant, ev.joinUserID)
	case evUpdate:
		s.handleUpdate(ev.participant, ev.updateUserID, ev.updateContent)
	case evSnapshot:
		ev.snapshotResult <- s.state
	case evShutdown:
		// handled by run after handle() returns
	}
}

func (s *Session) handleAttach(p *Participant, placeholderID ParticipantId) {
	s.participants[p] = placeholderID
	s.isIdle = false

	if b, err := encodeDocumentState(documentStateBody(s.state)); err == nil {
		p.sendDirect(b)
	}
}

func (s *Session) handleDetach(p *Participant) {
	id, ok := s.participants[p]
	if !ok {
		return // already detached (e.g. eviction raced with reader close)
	}
	delete(s.participants, p)
	p.close()
	s.registry.onDetach(s.id, s)

	if id != "" {
		s.broadcastExcept(nil, userLeftFrame(string(id)))
	}
	if len(s.participants) == 0 {
		s.idleSinceMillis = s.clock.NowMillis()
		s.isIdle = true
	}
}

func (s *Session) handleJoin(p *Participant, userID ParticipantId) {
	old, ok := s.participants[p]
	if !ok {
		return
	}
	s.participants[p] = userID

	if old != "" && old != userID {
		s.broadcastExcept(p, userLeftFrame(string(old)))
	}
	s.broadcastExcept(p, userJoinedFrame(string(userID)))
}

func (s *Session) handleUpdate(p *Participant, userID, content string) {
	if err := ValidateUpdate(content, userID, s.cfg.MaxContentScalars); err != nil {
		s.handleError(p, validationMessage(err))
		return
	}

	now := s.clock.NowMillis()
	s.state = applyUpdate(s.state, content, now)

	s.broadcastExcept(p, documentUpdatedFrame(content, userID, now))

	s.writer.Submit(EditRecord{
		DocumentId:        s.id,
		ContentSnapshot:   content,
		OriginatorAddress: p.RemoteAddress,
		Timestamp:         now,
	})
}

func (s *Session) handleError(p *Participant, msg string) {
	if b, err := errorFrame(msg); err == nil {
		p.sendDirect(b)
	}
}

func (s *Session) handleTick() {
	if !s.isIdle || len(s.participants) != 0 {
		return
	}
	if s.clock.NowMillis()-s.idleSinceMillis < s.cfg.IdleGraceMillis {
		return
	}
	if s.registry.retire(s.id, s) {
		s.enqueueEvent(sessionEvent{kind: evShutdown})
	}
}

// drainAndExit processes any events still queued (delivering Detach
// for lingering participants) before the worker exits, per §5.
func (s *Session) drainAndExit() {
	for p := range s.participants {
		s.handleDetach(p)
	}
	for {
		select {
		case ev := <-s.inbound:
			if ev.kind != evShutdown {
				s.handle(ev)
			}
		default:
			return
		}
	}
}

// broadcastExcept enqueues frame to every participant other than
// exclude (nil excludes no one). A full outbound queue evicts that
// participant; eviction never blocks the broadcast to its peers.
func (s *Session) broadcastExcept(exclude *Participant, frame []byte) {
	for p := range s.participants {
		if p == exclude {
			continue
		}
		if !p.enqueue(frame) {
			s.evictSlow(p)
		}
	}
}

func (s *Session) evictSlow(p *Participant) {
	if b, err := errorFrame("backpressure"); err == nil {
		p.sendDirect(b)
	}
	s.handleDetach(p)
}

func validationMessage(err error) string {
	switch err {
	case ErrContentNotUTF8:
		return "invalid_utf8"
	case ErrContentTooLarge:
		return "content_too_large"
	case ErrUserIDEmpty:
		return "user_id_required"
	case ErrUserIDTooLarge:
		return "user_id_too_large"
	default:
		return "invalid_update"
	}
}
