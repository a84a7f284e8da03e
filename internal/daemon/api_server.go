package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"copyengine/internal/api"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/mediaproxy"
	"copyengine/internal/services"
)

const requestIDHeader = "X-Request-Id"

type apiServer struct {
	daemon *Daemon
	token  string
	now    func() time.Time
	logger *slog.Logger
}

func newAPIServer(d *Daemon, token string, now func() time.Time, logger *slog.Logger) *apiServer {
	if now == nil {
		now = time.Now
	}
	return &apiServer{
		daemon: d,
		token:  strings.TrimSpace(token),
		now:    now,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", authMiddleware(s.token, s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks/{taskId}", authMiddleware(s.token, s.handleGetTask))
	mux.HandleFunc("POST /api/copy/variants", authMiddleware(s.token, s.handleCreateVariants))
	mux.HandleFunc("POST /api/copy/product-variants", authMiddleware(s.token, s.handleCreateProductVariants))
	mux.HandleFunc("GET /api/jobs/{jobId}", authMiddleware(s.token, s.handleGetJob))
	mux.Handle("GET "+mediaproxy.RoutePrefix+"{token}", s.daemon.relay)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(s.recoverPanics(mux))
}

func (s *apiServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	req, err := api.DecodeTask(http.MaxBytesReader(w, r.Body, api.MaxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	result, err := s.daemon.pipeline.CreateTask(r.Context(), req.ShareText, req.ClientRequestID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TaskAccepted{TaskID: result.TaskID, Status: result.Status})
}

func (s *apiServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	view, ok, err := s.daemon.pipeline.GetTask(r.Context(), taskID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, services.CodeNotFound, fmt.Sprintf("taskId=%s not found", taskID))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleCreateVariants(w http.ResponseWriter, r *http.Request) {
	req, err := api.DecodeCopyVariants(http.MaxBytesReader(w, r.Body, api.MaxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	jobID, err := s.daemon.copy.CreateRewriteJob(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobAccepted{JobID: jobID, Status: jobs.StatusQueued})
}

func (s *apiServer) handleCreateProductVariants(w http.ResponseWriter, r *http.Request) {
	req, err := api.DecodeProductVariants(http.MaxBytesReader(w, r.Body, api.MaxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	jobID, err := s.daemon.copy.CreateProductJob(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobAccepted{JobID: jobID, Status: jobs.StatusQueued})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	view, ok, err := s.daemon.copy.GetCopyJob(r.Context(), jobID)
	switch {
	case err != nil && ok:
		s.log(r).Error("copy job output unreadable",
			logging.String(logging.FieldEventType, "copy_output_missing"),
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		s.writeJSON(w, http.StatusInternalServerError, api.JobFailure{
			JobID:        jobID,
			Status:       jobs.StatusFailed,
			ErrorCode:    services.CodeInternal,
			ErrorMessage: services.Message(err),
		})
	case err != nil:
		s.writeFailure(w, r, err)
	case !ok:
		s.writeError(w, http.StatusNotFound, services.CodeNotFound, fmt.Sprintf("jobId=%s not found", jobID))
	default:
		s.writeJSON(w, http.StatusOK, view)
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewHealth(s.now()))
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.ErrorWithContext(s.log(r), "handler panicked", "api_panic",
				logging.String("path", r.URL.Path),
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
			)
			s.writeError(w, http.StatusInternalServerError, services.CodeInternal, fmt.Sprint(rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := services.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log(r).Error("request failed",
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, code, services.Message(err))
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.CodeInvalidInput, services.CodeInvalidLink:
		return http.StatusBadRequest
	case services.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, code services.ErrorCode, message string) {
	s.writeJSON(w, status, api.ErrorResponse{ErrorCode: code, ErrorMessage: message})
}

func (s *apiServer) log(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.logger)
}
