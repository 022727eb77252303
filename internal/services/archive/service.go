package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"intake/internal/domain"
	"intake/internal/ports"
)

type Service struct {
	repo ports.ArchiveRepository
}

func New(repo ports.ArchiveRepository) *Service { return &Service{repo: repo} }

func (s *Service) List(ctx context.Context) ([]domain.ArchiveEntry, error) {
	return s.repo.List(ctx)
}

// Search matches query case-insensitively against key, branch and the
// main vehicle fields. An empty query lists everything.
func (s *Service) Search(ctx context.Context, query string) ([]domain.ArchiveEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		v := e.Record.Vehicle
		for _, hay := range []string{e.Key, e.Branch, v.ChassisNumber, v.Brand, v.Owner, v.TradeName} {
			if strings.Contains(strings.ToLower(hay), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, key string) (domain.ArchiveEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	for _, e := range entries {
		if e.Key == key {
			return e, nil
		}
	}
	return domain.ArchiveEntry{}, ErrNotFound
}

// maxKeyAttempts bounds the retries when concurrent commits race for the
// same key.
const maxKeyAttempts = 50

// Commit stores entry. When editingKey names an existing entry it is
// replaced; otherwise the entry is inserted under a fresh key, moving to the
// next -N suffix when another commit claimed the key first. Failures wrap
// domain.ErrArchiveCommit.
func (s *Service) Commit(ctx context.Context, entry domain.ArchiveEntry, editingKey string) (domain.ArchiveEntry, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return domain.ArchiveEntry{}, domain.Wrap(domain.ErrArchiveCommit, err)
	}
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[e.Key] = true
	}
	entry.Record = entry.Record.Persistable()
	entry.Record.Archive = nil

	if editingKey != "" && taken[editingKey] {
		entry.Key = editingKey
		saved, err := s.repo.Upsert(ctx, editingKey, entry)
		if err != nil {
			return domain.ArchiveEntry{}, domain.Wrap(domain.ErrArchiveCommit, fmt.Errorf("upsert %s: %w", editingKey, err))
		}
		return saved, nil
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := NewKey(entry.Branch, entry.Record.Vehicle.ChassisNumber, func(k string) bool { return taken[k] })
		entry.Key = key
		saved, err := s.repo.Insert(ctx, key, entry)
		if errors.Is(err, domain.ErrKeyTaken) {
			taken[key] = true
			continue
		}
		if err != nil {
			return domain.ArchiveEntry{}, domain.Wrap(domain.ErrArchiveCommit, fmt.Errorf("insert %s: %w", key, err))
		}
		return saved, nil
	}
	return domain.ArchiveEntry{}, domain.Wrap(domain.ErrArchiveCommit, fmt.Errorf("no free key for %s after %d attempts", entry.Record.Vehicle.ChassisNumber, maxKeyAttempts))
}

// NewKey builds BRANCH_CHASSIS, adding -2, -3, ... while taken reports a clash.
func NewKey(branch, chassis string, taken func(string) bool) string {
	base := keyPart(branch) + "_" + keyPart(chassis)
	key := base
	for n := 2; taken != nil && taken(key); n++ {
		key = fmt.Sprintf("%s-%d", base, n)
	}
	return key
}

func keyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "UNKNOWN"
	}
	return b.String()
}

var ErrNotFound = fmt.Errorf("archive entry: %w", domain.ErrNotFound)
