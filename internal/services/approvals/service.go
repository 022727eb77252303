package approvals

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/ports"
)

// Filter selects reference rows by exact (case-insensitive) equality on the
// set fields. ApprovalPrefix is mandatory and matched as a prefix.
type Filter struct {
	ApprovalPrefix string
	Brand          string
	Type           string
	Variant        string
	Version        string
	TradeName      string
}

func (f Filter) Validate() error {
	if strings.TrimSpace(f.ApprovalPrefix) == "" {
		return fmt.Errorf("approval number prefix is required: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (f Filter) Match(r domain.TypeApproval) bool {
	if !strings.HasPrefix(fold(r.ApprovalNumber), fold(f.ApprovalPrefix)) {
		return false
	}
	pairs := [][2]string{
		{f.Brand, r.Brand},
		{f.Type, r.Type},
		{f.Variant, r.Variant},
		{f.Version, r.Version},
		{f.TradeName, r.TradeName},
	}
	for _, p := range pairs {
		if want := fold(p[0]); want != "" && want != fold(p[1]) {
			return false
		}
	}
	return true
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

type Service struct {
	repo ports.TypeApprovalRepository
	jobs ports.ImportJobRepository
	log  *zap.Logger
}

func New(repo ports.TypeApprovalRepository, jobs ports.ImportJobRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, jobs: jobs, log: log}
}

func (s *Service) List(ctx context.Context) ([]domain.TypeApproval, error) {
	return s.repo.List(ctx)
}

// Lookup returns the rows matching f.
func (s *Service) Lookup(ctx context.Context, f Filter) ([]domain.TypeApproval, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.TypeApproval
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// EnqueueImport validates the upload and queues it for the import workers.
func (s *Service) EnqueueImport(ctx context.Context, fileName string, payload []byte) (string, error) {
	if _, err := ParseCSV(payload); err != nil {
		return "", err
	}
	id, err := s.jobs.EnqueueImport(ctx, fileName, payload)
	if err != nil {
		return "", err
	}
	s.log.Info("type approval import queued", zap.String("job", id), zap.String("file", fileName), zap.Int("bytes", len(payload)))
	return id, nil
}

func (s *Service) ImportStatus(ctx context.Context, jobID string) (domain.ImportJob, error) {
	return s.jobs.GetImport(ctx, jobID)
}

// Process implements importrunner.Processor: parse the CSV payload and bulk insert it.
func (s *Service) Process(ctx context.Context, job ports.ImportJob) (int, error) {
	rows, err := ParseCSV(job.Payload)
	if err != nil {
		return 0, err
	}
	if err := s.repo.InsertMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("insert type approvals: %w", err)
	}
	s.log.Info("type approvals imported", zap.String("job", job.ID), zap.Int("rows", len(rows)))
	return len(rows), nil
}
