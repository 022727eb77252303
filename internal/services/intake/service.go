package intake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/ports"
	archivesvc "intake/internal/services/archive"
	"intake/internal/services/branches"
	"intake/internal/services/reconcile"
	"intake/internal/session"
)

// Session is one intake session: its record store plus sequencer position.
type Session struct {
	ID    string
	store *session.Store

	mu         sync.Mutex
	step       Step
	choiceMade bool
	editingKey string

	// busy is held by whichever scan or mutation is in flight.
	busy     atomic.Bool
	lastUsed atomic.Int64
}

// Store exposes the session's record store.
func (s *Session) Store() *session.Store { return s.store }

// claim takes the session for one scan or mutation. It never waits.
func (s *Session) claim() bool { return s.busy.CompareAndSwap(false, true) }

func (s *Session) release() { s.busy.Store(false) }

// Service owns the intake sessions and drives every step transition.
type Service struct {
	persister  ports.SessionPersister
	reconciler *reconcile.Reconciler
	archive    *archivesvc.Service
	branches   *branches.Service
	log        *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(persister ports.SessionPersister, reconciler *reconcile.Reconciler, archive *archivesvc.Service, branchCatalogue *branches.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		persister:  persister,
		reconciler: reconciler,
		archive:    archive,
		branches:   branchCatalogue,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		sessions:   map[string]*Session{},
	}
}

// Start opens a fresh session at branch selection.
func (s *Service) Start(ctx context.Context) (View, error) {
	id := uuid.NewString()
	sess := &Session{ID: id, store: session.New(session.StorageKey(id), s.persister, s.log), step: StepBranchSelect}
	sess.store.ResetRecord(ctx)
	sess.lastUsed.Store(s.now().UnixNano())
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.log.Info("intake session started", zap.String("session", id))
	return s.view(sess), nil
}

// Session returns the live session, restoring it from the persister after a
// restart. Restored sessions resume at the earliest step their data allows.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.lastUsed.Store(s.now().UnixNano())
		return sess, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	store, found, err := session.Load(ctx, session.StorageKey(id), s.persister, s.log)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	sess = &Session{ID: id, store: store, step: StepRecordChoice}
	sess.step = s.guard(sess, StepRecordChoice)
	sess.lastUsed.Store(s.now().UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	s.sessions[id] = sess
	s.log.Info("intake session restored", zap.String("session", id))
	return sess, nil
}

// EvictIdle drops sessions untouched for longer than ttl and returns how
// many went. An evicted session reloads from the persister on next use, with
// its attachments reduced to descriptors.
func (s *Service) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Load() < cutoff && !sess.busy.Load() {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *Service) RunEviction(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 || interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.EvictIdle(ttl); n > 0 {
				s.log.Info("idle sessions evicted", zap.Int("count", n), zap.Duration("ttl", ttl))
			}
		}
	}
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// SelectBranch sets the branch once per session and advances to record choice.
func (s *Service) SelectBranch(ctx context.Context, id, branch string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	name, ok := s.branches.Resolve(branch)
	if !ok {
		return View{}, fmt.Errorf("unknown branch %q: %w", branch, domain.ErrInvalidInput)
	}
	if current := sess.store.Branch(); current != "" && current != name {
		return View{}, fmt.Errorf("session bound to %q: %w", current, domain.ErrBranchLocked)
	}
	sess.store.SetBranch(ctx, name)

	sess.mu.Lock()
	if sess.step == StepBranchSelect {
		sess.step = StepRecordChoice
	}
	sess.mu.Unlock()
	return s.view(sess), nil
}

// ChooseRecord starts a new record (editKey empty) or loads an archived
// entry for editing; the next commit then replaces that entry.
func (s *Service) ChooseRecord(ctx context.Context, id, editKey string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	if sess.store.Branch() == "" {
		sess.mu.Lock()
		sess.step = StepBranchSelect
		sess.mu.Unlock()
		return s.view(sess), nil
	}

	var patch domain.RecordPatch
	if editKey != "" {
		entry, err := s.archive.Get(ctx, editKey)
		if err != nil {
			return View{}, err
		}
		patch = patchFromRecord(entry.Record)
	}
	sess.store.ResetRecord(ctx)
	if editKey != "" {
		sess.store.UpdateRecord(ctx, patch, false)
	}

	sess.mu.Lock()
	sess.choiceMade = true
	sess.editingKey = editKey
	sess.step = StepRegistration
	sess.mu.Unlock()
	return s.view(sess), nil
}

// Navigate moves to target, or to the earliest step whose precondition is
// unmet. It never fails on a precondition.
func (s *Service) Navigate(ctx context.Context, id string, target Step) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	step := s.guard(sess, target)
	sess.mu.Lock()
	sess.step = step
	sess.mu.Unlock()
	if step != target {
		s.log.Debug("navigation redirected", zap.String("session", id),
			zap.String("target", string(target)), zap.String("step", string(step)))
	}
	return s.view(sess), nil
}

// Advance navigates one step forward from the current step.
func (s *Service) Advance(ctx context.Context, id string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.Navigate(ctx, id, sess.currentStep().Next())
}

// Back navigates one step backward from the current step.
func (s *Service) Back(ctx context.Context, id string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.Navigate(ctx, id, sess.currentStep().Prev())
}

// guard returns target when all its preconditions hold, otherwise the
// earliest step whose precondition is unmet.
func (s *Service) guard(sess *Session, target Step) Step {
	sess.mu.Lock()
	choiceMade := sess.choiceMade
	sess.mu.Unlock()

	if target.after(StepBranchSelect) && sess.store.Branch() == "" {
		return StepBranchSelect
	}
	if target.after(StepRecordChoice) && !choiceMade {
		// A restored session with data in progress resumes without a new choice.
		if sess.store.Record().Vehicle.ChassisNumber == "" {
			return StepRecordChoice
		}
		sess.mu.Lock()
		sess.choiceMade = true
		sess.mu.Unlock()
	}
	if target.after(StepRegistration) && sess.store.Record().Vehicle.ChassisNumber == "" {
		return StepRegistration
	}
	return target
}

// Update merges a form submission into the record.
func (s *Service) Update(ctx context.Context, id string, patch domain.RecordPatch) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	sess.store.UpdateRecord(ctx, patch, false)
	return s.view(sess), nil
}

// Attach stores an uploaded file in slot (registration, label or media).
func (s *Service) Attach(ctx context.Context, id, slot string, file *openapi_types.File, mimeType string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	if file == nil || file.FileSize() == 0 {
		return View{}, fmt.Errorf("empty upload: %w", domain.ErrFileUnreadable)
	}
	a := domain.NewLiveAttachment(file, mimeType)
	var patch domain.RecordPatch
	switch slot {
	case session.SlotRegistration:
		patch.Registration = &a
	case session.SlotLabel:
		patch.Label = &a
	case "media":
		patch.AppendMedia = []domain.Attachment{a}
	default:
		return View{}, fmt.Errorf("unknown slot %q: %w", slot, domain.ErrInvalidInput)
	}
	sess.store.UpdateRecord(ctx, patch, false)
	return s.view(sess), nil
}

// ScanOutcome is the result of a scan request. Result is nil when the scan
// was redirected to an earlier step.
type ScanOutcome struct {
	Result     *reconcile.Result `json:"result,omitempty"`
	Redirected bool              `json:"redirected"`
	View       View              `json:"session"`
}

// Scan runs one reconciliation pass over the document in the source's slot.
// Only one scan per session may be in flight; a second is rejected with
// ErrScanInProgress. On failure the record is left untouched.
func (s *Service) Scan(ctx context.Context, id string, source domain.DocumentSource) (ScanOutcome, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return ScanOutcome{}, err
	}
	if !sess.claim() {
		return ScanOutcome{}, domain.ErrScanInProgress
	}
	defer sess.release()

	stepFor := StepRegistration
	if source == domain.SourceLabel {
		stepFor = StepLabel
	}
	if step := s.guard(sess, stepFor); step != stepFor {
		sess.mu.Lock()
		sess.step = step
		sess.mu.Unlock()
		return ScanOutcome{Redirected: true, View: s.view(sess)}, nil
	}

	rec := sess.store.Record()
	att := rec.Attachments.Registration
	if source == domain.SourceLabel {
		att = rec.Attachments.Label
	}
	if att == nil {
		return ScanOutcome{}, fmt.Errorf("no %s document uploaded: %w", source, domain.ErrFileUnreadable)
	}
	data, err := att.Bytes()
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("%s document must be uploaded again: %w", source, err)
	}
	desc := att.Descriptor()
	doc := domain.Document{Source: source, Name: desc.Name, MIMEType: desc.Type, Data: data}

	started := s.now()
	res, err := s.reconciler.Run(ctx, doc, rec.Vehicle)
	if err != nil {
		s.log.Warn("scan abandoned", zap.String("session", id), zap.String("source", string(source)), zap.Error(err))
		return ScanOutcome{}, err
	}

	var patch domain.VehiclePatch
	for _, f := range res.Changed {
		v := res.Fields.Get(f)
		patch = setPatchField(patch, f, v)
	}
	sess.store.UpdateRecord(ctx, domain.RecordPatch{Vehicle: patch}, false)
	s.log.Info("scan reconciled",
		zap.String("session", id),
		zap.String("source", string(source)),
		zap.Int("changed", len(res.Changed)),
		zap.Duration("took", s.now().Sub(started)))
	return ScanOutcome{Result: &res, View: s.view(sess)}, nil
}

// CommitOutcome reports a commit. Entry is zero when the commit was
// redirected because the record is not ready.
type CommitOutcome struct {
	Entry      domain.ArchiveEntry `json:"entry"`
	Redirected bool                `json:"redirected"`
	View       View                `json:"session"`
}

// Commit archives the record and loops back to the registration step with
// an empty record. When the archive write fails the record is kept so the
// caller can retry.
func (s *Service) Commit(ctx context.Context, id string) (CommitOutcome, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return CommitOutcome{}, err
	}
	if !sess.claim() {
		return CommitOutcome{}, domain.ErrScanInProgress
	}
	defer sess.release()
	if step := s.guard(sess, StepSummary); step != StepSummary {
		sess.mu.Lock()
		sess.step = step
		sess.mu.Unlock()
		return CommitOutcome{Redirected: true, View: s.view(sess)}, nil
	}

	sess.mu.Lock()
	editingKey := sess.editingKey
	sess.mu.Unlock()

	rec := sess.store.Record()
	rec.Archive = nil
	entry := domain.ArchiveEntry{Branch: sess.store.Branch(), CommittedAt: s.now(), Record: rec}
	saved, err := s.archive.Commit(ctx, entry, editingKey)
	if err != nil {
		s.log.Error("archive commit failed", zap.String("session", id), zap.Error(err))
		return CommitOutcome{}, err
	}

	sess.store.CommitToArchive(ctx, saved, editingKey)
	sess.store.ResetRecord(ctx)
	sess.mu.Lock()
	sess.editingKey = ""
	sess.step = StepRegistration
	sess.mu.Unlock()
	s.log.Info("record archived", zap.String("session", id), zap.String("key", saved.Key))
	return CommitOutcome{Entry: saved, View: s.view(sess)}, nil
}

// Reset discards the in-progress record, keeping branch and archive.
func (s *Service) Reset(ctx context.Context, id string) (View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !sess.claim() {
		return View{}, domain.ErrScanInProgress
	}
	defer sess.release()
	sess.store.ResetRecord(ctx)
	sess.mu.Lock()
	sess.editingKey = ""
	sess.mu.Unlock()
	step := s.guard(sess, StepRegistration)
	sess.mu.Lock()
	sess.step = step
	sess.mu.Unlock()
	return s.view(sess), nil
}

// Preview issues a preview token for the live attachment in slot.
func (s *Service) Preview(ctx context.Context, id, slot string) (string, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.store.IssuePreview(slot)
}

// ResolvePreview returns the bytes behind a preview token.
func (s *Service) ResolvePreview(ctx context.Context, id, token string) (domain.Descriptor, []byte, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	a, ok := sess.store.ResolvePreview(token)
	if !ok {
		return domain.Descriptor{}, nil, fmt.Errorf("preview %q: %w", token, domain.ErrNotFound)
	}
	data, err := a.Bytes()
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	return a.Descriptor(), data, nil
}

// ReleasePreview revokes a preview token.
func (s *Service) ReleasePreview(ctx context.Context, id, token string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	sess.store.ReleasePreview(token)
	return nil
}

func (sess *Session) currentStep() Step {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.step
}

func setPatchField(p domain.VehiclePatch, f domain.Field, v string) domain.VehiclePatch {
	switch f {
	case domain.FieldChassisNumber:
		p.ChassisNumber = &v
	case domain.FieldBrand:
		p.Brand = &v
	case domain.FieldType:
		p.Type = &v
	case domain.FieldTradeName:
		p.TradeName = &v
	case domain.FieldOwner:
		p.Owner = &v
	case domain.FieldTypeApprovalNumber:
		p.TypeApprovalNumber = &v
	case domain.FieldTypeAndVariant:
		p.TypeAndVariant = &v
	}
	return p
}

// patchFromRecord rebuilds a patch that restores an archived record.
func patchFromRecord(r domain.Record) domain.RecordPatch {
	r = r.Persistable()
	return domain.RecordPatch{
		Vehicle:      domain.FullVehiclePatch(r.Vehicle),
		WorkOrder:    r.WorkOrder,
		Inspection:   r.Inspection,
		Checklist:    r.Checklist,
		TypeApproval: r.TypeApproval,
		Signatures:   r.Signatures,
		Registration: r.Attachments.Registration,
		Label:        r.Attachments.Label,
		AppendMedia:  r.Attachments.Media,
	}
}
