// Package wire implements the client <-> server JSON frame protocol:
// single-key tagged-union objects, one per channel message.
package wire

import (
	"encoding/json"
	"errors"
)

// ErrUnknownMessage is returned when an inbound frame has no recognized
// top-level key, or more than one. The caller reports it to the
// originator as Error{"unknown_message"} and otherwise ignores it.
var ErrUnknownMessage = errors.New("unknown_message")

// JoinDocument is the client->server frame identifying the sender.
type JoinDocument struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
}

// UpdateDocument is the client->server whole-content replacement frame.
type UpdateDocument struct {
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

type clientEnvelope struct {
	JoinDocument   *JoinDocument   `json:"JoinDocument,omitempty"`
	UpdateDocument *UpdateDocument `json:"UpdateDocument,omitempty"`
}

// ParseClient decodes one inbound frame. It returns either a
// *JoinDocument or *UpdateDocument, or ErrUnknownMessage if the frame
// parses as JSON but carries no recognized key (or more than one).
func ParseClient(data []byte) (any, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch {
	case env.JoinDocument != nil && env.UpdateDocument == nil:
		return env.JoinDocument, nil
	case env.UpdateDocument != nil && env.JoinDocument == nil:
		return env.UpdateDocument, nil
	default:
		return nil, ErrUnknownMessage
	}
}

// DocumentStateBody is the payload of the DocumentState server frame.
type DocumentStateBody struct {
	Content      string `json:"content"`
	Version      uint64 `json:"version"`
	LastModified int64  `json:"last_modified"`
}

// DocumentUpdatedBody carries the originator's user_id, the new
// content, and — per the open-question decision in DESIGN.md — the
// timestamp, nested inside the update object for frontend
// compatibility rather than beside it.
type DocumentUpdatedBody struct {
	Content   string `json:"content"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeDocumentState marshals a DocumentState server frame.
func EncodeDocumentState(state DocumentStateBody) ([]byte, error) {
	return json.Marshal(struct {
		DocumentState struct {
			State DocumentStateBody `json:"state"`
		} `json:"DocumentState"`
	}{
		DocumentState: struct {
			State DocumentStateBody `json:"state"`
		}{State: state},
	})
}

// EncodeUserJoined marshals a UserJoined server frame.
func EncodeUserJoined(userID string) ([]byte, error) {
	return json.Marshal(struct {
		UserJoined struct {
			UserID string `json:"user_id"`
		} `json:"UserJoined"`
	}{
		UserJoined: struct {
			UserID string `json:"user_id"`
		}{UserID: userID},
	})
}

// EncodeUserLeft marshals a UserLeft server frame.
func EncodeUserLeft(userID string) ([]byte, error) {
	return json.Marshal(struct {
		UserLeft struct {
			UserID string `json:"user_id"`
		} `json:"UserLeft"`
	}{
		UserLeft: struct {
			UserID string `json:"user_id"`
		}{UserID: userID},
	})
}

// EncodeDocumentUpdated marshals a DocumentUpdated server frame.
func EncodeDocumentUpdated(body DocumentUpdatedBody) ([]byte, error) {
	return json.Marshal(struct {
		DocumentUpdated struct {
			Update DocumentUpdatedBody `json:"update"`
		} `json:"DocumentUpdated"`
	}{
		DocumentUpdated: struct {
			Update DocumentUpdatedBody `json:"update"`
		}{Update: body},
	})
}

// EncodeError marshals an Error server frame.
func EncodeError(message string) ([]byte, error) {
	return json.Marshal(struct {
		Error struct {
			Message string `json:"message"`
		} `json:"Error"`
	}{
		Error: struct {
			Message string `json:"message"`
		}{Message: message},
	})
}
