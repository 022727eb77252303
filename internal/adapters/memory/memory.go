// Package memory provides in-process implementations of the repository
// ports. The server uses them when no DATABASE_URL is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake/internal/domain"
)

// Sessions is an in-memory SessionPersister.
type Sessions struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewSessions() *Sessions { return &Sessions{data: map[string][]byte{}} }

func (s *Sessions) Save(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), payload...)
	return nil
}

func (s *Sessions) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

// Archive is an in-memory ArchiveRepository preserving insertion order.
type Archive struct {
	mu      sync.Mutex
	entries []domain.ArchiveEntry
}

func NewArchive() *Archive { return &Archive{} }

func (a *Archive) List(_ context.Context) ([]domain.ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ArchiveEntry, len(a.entries))
	for i, e := range a.entries {
		e.Record = e.Record.Clone()
		out[i] = e
	}
	return out, nil
}

func (a *Archive) Insert(_ context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.entries {
		if a.entries[i].Key == key {
			return domain.ArchiveEntry{}, fmt.Errorf("%s: %w", key, domain.ErrKeyTaken)
		}
	}
	entry.Key = key
	entry.Record = entry.Record.Persistable()
	a.entries = append(a.entries, entry)
	return entry, nil
}

func (a *Archive) Upsert(_ context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry.Key = key
	entry.Record = entry.Record.Persistable()
	for i := range a.entries {
		if a.entries[i].Key == key {
			a.entries[i] = entry
			return entry, nil
		}
	}
	a.entries = append(a.entries, entry)
	return entry, nil
}

// TypeApprovals is an in-memory TypeApprovalRepository.
type TypeApprovals struct {
	mu   sync.Mutex
	rows []domain.TypeApproval
}

func NewTypeApprovals() *TypeApprovals { return &TypeApprovals{} }

func (t *TypeApprovals) List(_ context.Context) ([]domain.TypeApproval, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TypeApproval(nil), t.rows...), nil
}

func (t *TypeApprovals) InsertMany(_ context.Context, rows []domain.TypeApproval) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.ImportedAt.IsZero() {
			r.ImportedAt = now
		}
		t.rows = append(t.rows, r)
	}
	return nil
}
