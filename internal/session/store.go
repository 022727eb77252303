// Package session holds the per-session record state: the in-progress
// record, its archive, the branch selection and attachment previews.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/ports"
)

// KeyPrefix prefixes the storage key of every persisted session.
const KeyPrefix = "intake-session:"

func StorageKey(sessionID string) string { return KeyPrefix + sessionID }

// Slot names an attachment position inside a record.
const (
	SlotRegistration = "registration"
	SlotLabel        = "label"
	slotMediaPrefix  = "media:"
)

func MediaSlot(i int) string { return slotMediaPrefix + strconv.Itoa(i) }

// state is the persisted projection of a session.
type state struct {
	Branch string        `json:"branch"`
	Record domain.Record `json:"record"`
}

// Store owns one session's record. All methods are safe for concurrent use;
// every mutation writes the persistable projection before returning.
type Store struct {
	mu        sync.Mutex
	key       string
	branch    string
	record    domain.Record
	persister ports.SessionPersister
	log       *zap.Logger
	previews  map[string]string // token -> slot
}

func New(key string, persister ports.SessionPersister, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{key: key, persister: persister, log: log, previews: map[string]string{}}
}

// Load restores a store from its persisted projection. Attachments come back
// as descriptors. found is false when nothing was stored under key.
func Load(ctx context.Context, key string, persister ports.SessionPersister, log *zap.Logger) (*Store, bool, error) {
	s := New(key, persister, log)
	if persister == nil {
		return s, false, nil
	}
	raw, found, err := persister.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", key, err)
	}
	if !found {
		return s, false, nil
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", key, err)
	}
	s.branch = st.Branch
	s.record = st.Record
	return s, true, nil
}

func (s *Store) Key() string { return s.key }

// Record returns a snapshot of the current record.
func (s *Store) Record() domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// UpdateRecord merges patch into the record. With reset the record is
// replaced by an empty one that keeps only the archive, and patch is ignored.
func (s *Store) UpdateRecord(ctx context.Context, patch domain.RecordPatch, reset bool) domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reset {
		s.record = s.record.Empty()
		s.previews = map[string]string{}
	} else {
		if patch.Registration != nil {
			s.revokeSlot(SlotRegistration)
		}
		if patch.Label != nil {
			s.revokeSlot(SlotLabel)
		}
		s.record = s.record.Apply(patch)
	}
	s.persistLocked(ctx)
	return s.record.Clone()
}

func (s *Store) ResetRecord(ctx context.Context) domain.Record {
	return s.UpdateRecord(ctx, domain.RecordPatch{}, true)
}

func (s *Store) Branch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branch
}

// SetBranch sets the session-level branch, independently of the record.
func (s *Store) SetBranch(ctx context.Context, branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branch = branch
	s.persistLocked(ctx)
}

// CommitToArchive replaces the entry whose key equals editingKey, or appends
// entry when editingKey is empty or unknown. It returns the updated archive.
func (s *Store) CommitToArchive(ctx context.Context, entry domain.ArchiveEntry, editingKey string) []domain.ArchiveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Record = entry.Record.Persistable()
	entry.Record.Archive = nil

	replaced := false
	if editingKey != "" {
		for i := range s.record.Archive {
			if s.record.Archive[i].Key == editingKey {
				s.record.Archive[i] = entry
				replaced = true
				break
			}
		}
	}
	if !replaced {
		s.record.Archive = append(s.record.Archive, entry)
	}
	s.persistLocked(ctx)
	return s.record.Clone().Archive
}

// Snapshot encodes the persistable projection.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() ([]byte, error) {
	return json.Marshal(state{Branch: s.branch, Record: s.record.Persistable()})
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	raw, err := s.snapshotLocked()
	if err != nil {
		s.log.Error("encode session", zap.String("key", s.key), zap.Error(err))
		return
	}
	if err := s.persister.Save(ctx, s.key, raw); err != nil {
		s.log.Warn("persist session", zap.String("key", s.key), zap.Error(err))
	}
}

// IssuePreview hands out a token for the live attachment in slot. The token
// stops resolving once the slot is superseded or the record is reset.
func (s *Store) IssuePreview(slot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachmentLocked(slot)
	if !ok {
		return "", fmt.Errorf("slot %q: %w", slot, domain.ErrNotFound)
	}
	if !a.IsLive() {
		return "", fmt.Errorf("slot %q: %w", slot, domain.ErrFileUnreadable)
	}
	token := uuid.NewString()
	s.previews[token] = slot
	return token, nil
}

// ResolvePreview returns the live attachment behind token.
func (s *Store) ResolvePreview(token string) (domain.Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.previews[token]
	if !ok {
		return domain.Attachment{}, false
	}
	a, ok := s.attachmentLocked(slot)
	if !ok || !a.IsLive() {
		return domain.Attachment{}, false
	}
	return a, true
}

// ReleasePreview revokes a single token.
func (s *Store) ReleasePreview(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.previews, token)
}

func (s *Store) revokeSlot(slot string) {
	for token, sl := range s.previews {
		if sl == slot {
			delete(s.previews, token)
		}
	}
}

func (s *Store) attachmentLocked(slot string) (domain.Attachment, bool) {
	att := s.record.Attachments
	switch {
	case slot == SlotRegistration && att.Registration != nil:
		return *att.Registration, true
	case slot == SlotLabel && att.Label != nil:
		return *att.Label, true
	case strings.HasPrefix(slot, slotMediaPrefix):
		i, err := strconv.Atoi(strings.TrimPrefix(slot, slotMediaPrefix))
		if err != nil || i < 0 || i >= len(att.Media) {
			return domain.Attachment{}, false
		}
		return att.Media[i], true
	}
	return domain.Attachment{}, false
}
