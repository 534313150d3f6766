package hub

import (
	"sync"
	"time"

	"github.com/sumanthd032/collabhub/internal/observability"
	"github.com/sumanthd032/collabhub/internal/wire"
)

// Participant is one connected client within a Session: a channel plus
// a bounded outbound queue, generalizing the teacher's Client
// (conn + send chan []byte) to carry the extra bookkeeping the hub
// needs (remote address, a stable detach signal).
type Participant struct {
	RemoteAddress string

	conn         Channel
	outbound     chan []byte
	writeTimeout time.Duration
	closeOnce    sync.Once
	closed       chan struct{}
}

// NewParticipant constructs a Participant bound to conn with the given
// outbound queue capacity and per-frame write timeout.
func NewParticipant(conn Channel, remoteAddress string, queueCapacity int, writeTimeout time.Duration) *Participant {
	return &Participant{
		RemoteAddress: remoteAddress,
		conn:          conn,
		outbound:      make(chan []byte, queueCapacity),
		writeTimeout:  writeTimeout,
		closed:        make(chan struct{}),
	}
}

// enqueue attempts a non-blocking send to the outbound queue. It
// reports false if the queue is full, the signal the Session uses to
// evict a slow participant. Broadcasting never blocks on this call.
func (p *Participant) enqueue(frame []byte) bool {
	select {
	case p.outbound <- frame:
		return true
	default:
		return false
	}
}

// sendDirect enqueues a frame meant only for this participant (an
// Error reply, for instance) best-effort, dropping it rather than
// blocking if the queue happens to be full.
func (p *Participant) sendDirect(frame []byte) {
	select {
	case p.outbound <- frame:
	default:
	}
}

// close idempotently closes the underlying channel, unblocking both
// the reader and writer pumps.
func (p *Participant) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
	})
}

// runReader parses inbound frames and delivers them as events to the
// session's inbound queue; content validation happens in the Session.
// On a parse failure it replies unknown_message directly to this
// participant and continues; on channel closure it signals detach and
// returns.
func (s *Session) runReader(p *Participant) {
	log := observability.WithFields("document_id", s.id.String())
	for {
		data, err := p.conn.ReadMessage()
		if err != nil {
			s.enqueueEvent(sessionEvent{kind: evDetach, participant: p})
			return
		}
		frame, err := wire.ParseClient(data)
		if err != nil {
			log.Debug("rejecting frame", "reason", err)
			if b, encErr := wire.EncodeError("unknown_message"); encErr == nil {
				p.sendDirect(b)
			}
			continue
		}
		switch f := frame.(type) {
		case *wire.JoinDocument:
			s.enqueueEvent(sessionEvent{kind: evJoin, participant: p, joinUserID: ParticipantId(f.UserID)})
		case *wire.UpdateDocument:
			s.enqueueEvent(sessionEvent{kind: evUpdate, participant: p, updateContent: f.Content, updateUserID: f.UserID})
		}
	}
}

// runWriter drains the outbound queue and serializes frames to the
// wire. A write timeout evicts the participant: the Session's
// broadcast path never waits on this goroutine.
func (s *Session) runWriter(p *Participant) {
	for {
		select {
		case frame, ok := <-p.outbound:
			if !ok {
				return
			}
			if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
				s.enqueueEvent(sessionEvent{kind: evDetach, participant: p})
				return
			}
			if err := p.conn.WriteMessage(frame); err != nil {
				s.enqueueEvent(sessionEvent{kind: evDetach, participant: p})
				return
			}
		case <-p.closed:
			return
		}
	}
}
