package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"intake/internal/api"
	"intake/internal/ports"
	approvalsvc "intake/internal/services/approvals"
	archivesvc "intake/internal/services/archive"
	"intake/internal/services/branches"
	"intake/internal/services/intake"
)

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	// InlineTimeout bounds ?wait=true imports.
	InlineTimeout time.Duration
	// ImportPollInterval paces ?wait=true imports claimed by a worker.
	ImportPollInterval time.Duration
	// Ping reports storage health on /healthz when set.
	Ping func(ctx context.Context) error
}

// Server exposes the intake workflow, the archive and the type-approval
// table over JSON.
type Server struct {
	intake    *intake.Service
	archive   *archivesvc.Service
	approvals *approvalsvc.Service
	branches  *branches.Service
	jobs      ports.ImportJobRepository
	log       *zap.Logger
	opts      Options
}

func New(in *intake.Service, archive *archivesvc.Service, approvals *approvalsvc.Service, branchCatalogue *branches.Service, jobs ports.ImportJobRepository, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.InlineTimeout <= 0 {
		opts.InlineTimeout = 30 * time.Second
	}
	if opts.ImportPollInterval <= 0 {
		opts.ImportPollInterval = 100 * time.Millisecond
	}
	return &Server{intake: in, archive: archive, approvals: approvals, branches: branchCatalogue, jobs: jobs, log: log, opts: opts}
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/openapi.yaml", s.getOpenAPI)
	r.Get("/healthz", s.getHealthz)
	r.Get("/branches", s.getBranches)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.postSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Put("/branch", s.putBranch)
			r.Post("/record-choice", s.postRecordChoice)
			r.Post("/navigate", s.postNavigate)
			r.Patch("/record", s.patchRecord)
			r.Post("/attachments/{slot}", s.postAttachment)
			r.Post("/attachments/{slot}/preview", s.postPreview)
			r.Get("/previews/{token}", s.getPreview)
			r.Delete("/previews/{token}", s.deletePreview)
			r.Post("/scan/{source}", s.postScan)
			r.Post("/commit", s.postCommit)
			r.Post("/reset", s.postReset)
		})
	})

	r.Get("/archive", s.getArchive)
	r.Get("/archive/{key}", s.getArchiveEntry)

	r.Route("/type-approvals", func(r chi.Router) {
		r.Get("/", s.getTypeApprovals)
		r.Post("/imports", s.postImport)
		r.Get("/imports/{id}", s.getImport)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.Spec)
}

func (s *Server) getBranches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"branches": s.branches.List()})
}
