package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"intake/internal/domain"
	"intake/internal/services/intake"
)

func (s *Server) postSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.intake.Start(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type branchRequest struct {
	Branch string `json:"branch"`
}

func (s *Server) putBranch(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body branchRequest
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.SelectBranch(r.Context(), id, body.Branch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type recordChoiceRequest struct {
	// EditKey selects an archived entry to edit; empty starts a new record.
	EditKey string `json:"editKey"`
}

func (s *Server) postRecordChoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body recordChoiceRequest
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.ChooseRecord(r.Context(), id, body.EditKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type navigateRequest struct {
	Step      string `json:"step,omitempty"`
	Direction string `json:"direction,omitempty"` // next|back
}

type navigateResponse struct {
	Redirected bool        `json:"redirected"`
	Session    intake.View `json:"session"`
}

func (s *Server) postNavigate(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body navigateRequest
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		v      intake.View
		target intake.Step
	)
	switch {
	case body.Step != "":
		step, ok := intake.ParseStep(body.Step)
		if !ok {
			s.fail(w, r, fmt.Errorf("unknown step %q: %w", body.Step, domain.ErrInvalidInput))
			return
		}
		target = step
		v, err = s.intake.Navigate(r.Context(), id, step)
	case body.Direction == "next":
		v, err = s.intake.Advance(r.Context(), id)
	case body.Direction == "back":
		v, err = s.intake.Back(r.Context(), id)
	default:
		err = fmt.Errorf("step or direction required: %w", domain.ErrInvalidInput)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Redirected: target != "" && v.Step != target, Session: v})
}

func (s *Server) patchRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var patch domain.RecordPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// postAttachment accepts a multipart upload in the "file" field. The bytes
// stay in memory on the session as a live attachment.
func (s *Server) postAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slot, err := pathParam(r, "slot")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, mimeType, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.Attach(r.Context(), id, slot, file, mimeType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*openapi_types.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("upload exceeds %d bytes: %w", tooLarge.Limit, domain.ErrInvalidInput)
		}
		return nil, "", fmt.Errorf("multipart form: %v: %w", err, domain.ErrInvalidInput)
	}
	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		return nil, "", fmt.Errorf("missing file field: %w", domain.ErrInvalidInput)
	}
	// Copy the bytes out: the multipart form is removed when the request ends
	// and the attachment outlives it.
	src, err := fhs[0].Open()
	if err != nil {
		return nil, "", domain.Wrap(domain.ErrFileUnreadable, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", domain.Wrap(domain.ErrFileUnreadable, err)
	}
	var f openapi_types.File
	f.InitFromBytes(data, fhs[0].Filename)
	return &f, fhs[0].Header.Get("Content-Type"), nil
}

type previewResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

func (s *Server) postPreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slot, err := pathParam(r, "slot")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.intake.Preview(r.Context(), id, slot)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, previewResponse{Token: token, URL: "/sessions/" + id + "/previews/" + token})
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := pathParam(r, "token")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	desc, data, err := s.intake.ResolvePreview(r.Context(), id, token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct := desc.Type
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) deletePreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := pathParam(r, "token")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.intake.ReleasePreview(r.Context(), id, token); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := pathParam(r, "source")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	source, ok := domain.ParseDocumentSource(raw)
	if !ok {
		s.fail(w, r, fmt.Errorf("unknown document source %q: %w", raw, domain.ErrInvalidInput))
		return
	}
	out, err := s.intake.Scan(r.Context(), id, source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postCommit(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.intake.Commit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if out.Redirected {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.intake.Reset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
