package hub

import (
	"context"
	"testing"
	"time"
)

func TestRegistryAttachCreatesSessionAndSendsInitialState(t *testing.T) {
	store := newFakeStore()
	docID := NewDocumentId()
	store.current[docID] = struct {
		content      string
		lastModified int64
	}{"hello", 1000}

	registry := NewRegistry(store, &fakeWriter{}, newFakeClock(0), testSessionConfig())

	ch := newFakeChannel()
	p := NewParticipant(ch, "1.2.3.4", 4, time.Second)

	session := registry.Attach(context.Background(), docID, p, ParticipantId("placeholder"))
	if session == nil {
		t.Fatal("expected a session")
	}
	session.Serve(p)

	select {
	case frame := <-ch.sent:
		if len(frame) == 0 {
			t.Fatal("expected a non-empty document_state frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial document_state frame")
	}

	if got, ok := registry.Lookup(docID); !ok || got != session {
		t.Fatal("expected Lookup to find the attached session")
	}
}

func TestRegistryAttachReusesExistingSessionForSameDocument(t *testing.T) {
	store := newFakeStore()
	docID := NewDocumentId()
	registry := NewRegistry(store, &fakeWriter{}, newFakeClock(0), testSessionConfig())

	ch1 := newFakeChannel()
	p1 := NewParticipant(ch1, "a", 4, time.Second)
	s1 := registry.Attach(context.Background(), docID, p1, ParticipantId("p1"))
	s1.Serve(p1)
	<-ch1.sent

	ch2 := newFakeChannel()
	p2 := NewParticipant(ch2, "b", 4, time.Second)
	s2 := registry.Attach(context.Background(), docID, p2, ParticipantId("p2"))
	s2.Serve(p2)
	<-ch2.sent

	if s1 != s2 {
		t.Fatal("expected the second Attach to reuse the first session")
	}
}

func TestRegistryRetiresSessionAfterIdleGrace(t *testing.T) {
	store := newFakeStore()
	docID := NewDocumentId()
	cfg := testSessionConfig()
	cfg.IdleGraceMillis = 1
	cfg.TickInterval = 5 * time.Millisecond
	clock := newFakeClock(0)
	registry := NewRegistry(store, &fakeWriter{}, clock, cfg)

	ch := newFakeChannel()
	p := NewParticipant(ch, "a", 4, time.Second)
	session := registry.Attach(context.Background(), docID, p, ParticipantId("p1"))
	session.Serve(p)
	<-ch.sent

	// Detach the only participant so the session goes idle immediately.
	session.enqueueEvent(sessionEvent{kind: evDetach, participant: p})

	// Give the Detach event time to be processed (idleSinceMillis is
	// stamped from the fake clock's current value at that moment), then
	// advance the clock past the grace window so handleTick's
	// NowMillis()-idleSinceMillis >= IdleGraceMillis check can fire.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(cfg.IdleGraceMillis + 1)

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := registry.Lookup(docID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected idle session to be retired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegistryBootstrapFailureLeavesNoZombieEntry(t *testing.T) {
	store := newFakeStore()
	store.failLoads = 1
	docID := NewDocumentId()
	registry := NewRegistry(store, &fakeWriter{}, newFakeClock(0), testSessionConfig())

	ch := newFakeChannel()
	p := NewParticipant(ch, "a", 4, time.Second)
	registry.Attach(context.Background(), docID, p, ParticipantId("p1"))

	select {
	case frame := <-ch.sent:
		if len(frame) == 0 {
			t.Fatal("expected a load_failed error frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for load_failed frame")
	}

	deadline := time.After(time.Second)
	for {
		if _, ok := registry.Lookup(docID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the failed bootstrap to leave no registry entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
