// Package hub implements the document session hub: the in-memory,
// per-document coordination layer described by the collaborative
// document service design (session registry, document sessions,
// participants, and the durability write-through path).
package hub

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DocumentId is the opaque, process-stable identifier for a document.
// Its canonical string form is a lowercase hyphenated hex UUID.
type DocumentId uuid.UUID

func (d DocumentId) String() string {
	return uuid.UUID(d).String()
}

// ParseDocumentId parses the canonical string form of a DocumentId.
func ParseDocumentId(s string) (DocumentId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentId{}, err
	}
	return DocumentId(u), nil
}

// NewDocumentId mints a fresh random DocumentId.
func NewDocumentId() DocumentId {
	return DocumentId(uuid.New())
}

// ParticipantId identifies a participant within a single Session. It is
// supplied by the client at join and is unique only within that Session
// at a given moment; reuse across joins is permitted.
type ParticipantId string

// DocumentState is the authoritative, versioned content of a document.
type DocumentState struct {
	Content      string `json:"content"`
	Version      uint64 `json:"version"`
	LastModified int64  `json:"last_modified"`
}

const (
	// MaxContentScalars is the default validation ceiling on UpdateDocument
	// content, in Unicode scalar values (spec: max_content_bytes = 100000).
	MaxContentScalars = 100000
	// MaxUserIDBytes bounds the user_id field on inbound frames.
	MaxUserIDBytes = 64
)

var (
	ErrContentTooLarge = errors.New("content exceeds maximum size")
	ErrContentNotUTF8  = errors.New("content is not valid utf-8")
	ErrUserIDEmpty     = errors.New("user_id must be non-empty")
	ErrUserIDTooLarge  = errors.New("user_id exceeds maximum size")
)

// ValidateUpdate checks an inbound UpdateDocument payload against the
// limits in §4.1. Rejected updates are never applied or broadcast.
func ValidateUpdate(content, userID string, maxContentScalars int) error {
	if !utf8.ValidString(content) {
		return ErrContentNotUTF8
	}
	if utf8.RuneCountInString(content) > maxContentScalars {
		return ErrContentTooLarge
	}
	if userID == "" {
		return ErrUserIDEmpty
	}
	if len(userID) > MaxUserIDBytes {
		return ErrUserIDTooLarge
	}
	return nil
}

// applyUpdate performs the whole-content last-writer-wins merge: the
// later-linearized update overwrites any prior content in full.
func applyUpdate(state DocumentState, content string, now int64) DocumentState {
	return DocumentState{
		Content:      content,
		Version:      state.Version + 1,
		LastModified: now,
	}
}
