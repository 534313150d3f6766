package hub

import "context"

// Clock returns monotonic wall-clock milliseconds. Production wiring
// uses the system clock; tests substitute a deterministic one.
type Clock interface {
	NowMillis() int64
}

// EditRecord is the append-only, persisted record of one accepted
// mutation. It is never held in memory beyond the write-through path.
type EditRecord struct {
	DocumentId        DocumentId
	ContentSnapshot   string
	OriginatorAddress string
	Timestamp         int64
}

// DocumentStore is the external durable-store capability the
// Durability Writer depends on. Implementations are assumed
// transactional per call.
type DocumentStore interface {
	// Load returns the persisted current content and last-modified
	// timestamp for a document, or ok=false if the document has never
	// been persisted.
	Load(ctx context.Context, id DocumentId) (content string, lastModified int64, ok bool, err error)

	// UpsertCurrent writes the latest current-row content for a document.
	UpsertCurrent(ctx context.Context, id DocumentId, content string, updatedAt int64) error

	// AppendHistory appends one audit-trail entry. History is append-only
	// and authoritative regardless of current-row coalescing.
	AppendHistory(ctx context.Context, id DocumentId, content, originatorAddress string, timestamp int64) error

	// ListHistory returns persisted history entries newest-first.
	ListHistory(ctx context.Context, id DocumentId) ([]EditRecord, error)
}

// Searcher is an optional DocumentStore capability backing the
// supplemented /api/search endpoint (SPEC_FULL.md §8). Implementations
// that cannot search efficiently may omit it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one document matched by a Searcher query.
type SearchResult struct {
	DocumentId   DocumentId
	Content      string
	LastModified int64
}
