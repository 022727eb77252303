package ports

import (
	"context"

	"intake/internal/domain"
)

// ArchiveRepository stores finalized records keyed by a caller-supplied key.
// Insert never overwrites: it fails with domain.ErrKeyTaken when key exists.
// Upsert replaces the entry under key and is reserved for edits.
type ArchiveRepository interface {
	List(ctx context.Context) ([]domain.ArchiveEntry, error)
	Insert(ctx context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error)
	Upsert(ctx context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error)
}

// TypeApprovalRepository is the type-approval reference table.
type TypeApprovalRepository interface {
	List(ctx context.Context) ([]domain.TypeApproval, error)
	InsertMany(ctx context.Context, rows []domain.TypeApproval) error
}

// SessionPersister keeps the serialized projection of an intake session.
// Save overwrites the value under key wholesale.
type SessionPersister interface {
	Save(ctx context.Context, key string, payload []byte) error
	Load(ctx context.Context, key string) (payload []byte, found bool, err error)
}
