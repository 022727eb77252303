package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"intake/internal/domain"
	approvalsvc "intake/internal/services/approvals"
	"intake/internal/workers/importrunner"
)

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	entries, err := s.archive.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ArchiveEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) getArchiveEntry(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.archive.Get(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) getTypeApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.approvals.Lookup(r.Context(), approvalsvc.Filter{
		ApprovalPrefix: q.Get("prefix"),
		Brand:          q.Get("brand"),
		Type:           q.Get("type"),
		Variant:        q.Get("variant"),
		Version:        q.Get("version"),
		TradeName:      q.Get("tradeName"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.TypeApproval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"typeApprovals": rows})
}

type importAccepted struct {
	JobID string `json:"jobId"`
}

// postImport queues a CSV upload. With ?wait=true the job is processed
// inline and its final state returned.
func (s *Server) postImport(w http.ResponseWriter, r *http.Request) {
	wait, err := queryBool(r, "wait")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, _, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload, err := file.Bytes()
	if err != nil {
		s.fail(w, r, domain.Wrap(domain.ErrFileUnreadable, err))
		return
	}

	id, err := s.approvals.EnqueueImport(r.Context(), file.Filename(), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, importAccepted{JobID: id})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.InlineTimeout)
	defer cancel()
	_, err = importrunner.ProcessInline(ctx, s.jobs, s.approvals, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// A background worker claimed the job first.
		job, done := s.awaitImport(ctx, id)
		if !done {
			writeJSON(w, http.StatusAccepted, importAccepted{JobID: id})
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	case err != nil:
		s.log.Warn("inline import failed", zap.String("job", id), zap.Error(err))
	}
	job, err := s.approvals.ImportStatus(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// awaitImport polls the job until it completes or fails, or ctx ends.
func (s *Server) awaitImport(ctx context.Context, id string) (domain.ImportJob, bool) {
	ticker := time.NewTicker(s.opts.ImportPollInterval)
	defer ticker.Stop()
	for {
		job, err := s.approvals.ImportStatus(ctx, id)
		if err == nil && (job.Status == "completed" || job.Status == "failed") {
			return job, true
		}
		select {
		case <-ctx.Done():
			return domain.ImportJob{}, false
		case <-ticker.C:
		}
	}
}

func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	job, err := s.approvals.ImportStatus(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
