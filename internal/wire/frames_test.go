package wire

import "testing"

func TestParseClientJoinDocument(t *testing.T) {
	frame, err := ParseClient([]byte(`{"JoinDocument":{"document_id":"doc-1","user_id":"alice"}}`))
	if err != nil {
		t.Fatalf("ParseClient: %v", err)
	}
	join, ok := frame.(*JoinDocument)
	if !ok {
		t.Fatalf("expected *JoinDocument, got %T", frame)
	}
	if join.UserID != "alice" || join.DocumentID != "doc-1" {
		t.Fatalf("unexpected fields: %+v", join)
	}
}

func TestParseClientUpdateDocument(t *testing.T) {
	frame, err := ParseClient([]byte(`{"UpdateDocument":{"content":"hello","user_id":"bob"}}`))
	if err != nil {
		t.Fatalf("ParseClient: %v", err)
	}
	update, ok := frame.(*UpdateDocument)
	if !ok {
		t.Fatalf("expected *UpdateDocument, got %T", frame)
	}
	if update.Content != "hello" || update.UserID != "bob" {
		t.Fatalf("unexpected fields: %+v", update)
	}
}

func TestParseClientRejectsUnknownKey(t *testing.T) {
	if _, err := ParseClient([]byte(`{"SomethingElse":{}}`)); err != ErrUnknownMessage {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestParseClientRejectsAmbiguousFrame(t *testing.T) {
	data := []byte(`{"JoinDocument":{"user_id":"a"},"UpdateDocument":{"content":"b","user_id":"b"}}`)
	if _, err := ParseClient(data); err != ErrUnknownMessage {
		t.Fatalf("expected ErrUnknownMessage for a frame carrying two keys, got %v", err)
	}
}

func TestParseClientRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClient([]byte(`not json`)); err == nil {
		t.Fatal("expected a JSON decode error")
	}
}

func TestEncodeDocumentStateRoundTrip(t *testing.T) {
	b, err := EncodeDocumentState(DocumentStateBody{Content: "hi", Version: 3, LastModified: 100})
	if err != nil {
		t.Fatalf("EncodeDocumentState: %v", err)
	}
	want := `{"DocumentState":{"state":{"content":"hi","version":3,"last_modified":100}}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\n got: %s\nwant: %s", b, want)
	}
}

func TestEncodeUserJoinedAndLeft(t *testing.T) {
	joined, err := EncodeUserJoined("alice")
	if err != nil {
		t.Fatalf("EncodeUserJoined: %v", err)
	}
	if string(joined) != `{"UserJoined":{"user_id":"alice"}}` {
		t.Fatalf("unexpected encoding: %s", joined)
	}

	left, err := EncodeUserLeft("alice")
	if err != nil {
		t.Fatalf("EncodeUserLeft: %v", err)
	}
	if string(left) != `{"UserLeft":{"user_id":"alice"}}` {
		t.Fatalf("unexpected encoding: %s", left)
	}
}

func TestEncodeDocumentUpdatedNestsTimestampUnderUpdate(t *testing.T) {
	b, err := EncodeDocumentUpdated(DocumentUpdatedBody{Content: "c", UserID: "u", Timestamp: 42})
	if err != nil {
		t.Fatalf("EncodeDocumentUpdated: %v", err)
	}
	want := `{"DocumentUpdated":{"update":{"content":"c","user_id":"u","timestamp":42}}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\n got: %s\nwant: %s", b, want)
	}
}

func TestEncodeError(t *testing.T) {
	b, err := EncodeError("content_too_large")
	if err != nil {
		t.Fatalf("EncodeError: %v", err)
	}
	want := `{"Error":{"message":"content_too_large"}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\n got: %s\nwant: %s", b, want)
	}
}
