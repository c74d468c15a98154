package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/service"
	"github.com/gymgate/server/internal/gymgate/types"
	"github.com/gymgate/server/internal/logger"
)

type Dependencies struct {
	Logger        *logger.Logger
	Addr          string
	AccessService *service.AccessService

	// ScanLimit throttles the two scan endpoints per remote IP. A zero rate
	// disables throttling.
	ScanLimit RateLimit

	// Ping reports storage health for /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

type Server struct {
	httpServer    *http.Server
	logger        *logger.Logger
	mux           *http.ServeMux
	accessService *service.AccessService
	ping          func(ctx context.Context) error
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:        d.Logger,
		mux:           mux,
		accessService: d.AccessService,
		ping:          d.Ping,
	}

	scans := newIPLimiter(d.ScanLimit)

	mux.Handle("POST /v1/access", scans.wrap(http.HandlerFunc(s.handleAccess)))
	mux.Handle("POST /v1/access/validate", scans.wrap(http.HandlerFunc(s.handleValidate)))
	mux.HandleFunc("GET /v1/members/{identifier}/usage", s.handleUsage)
	mux.HandleFunc("GET /v1/members/{identifier}/accesses", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	s.serveScan(w, r, s.accessService.DecideAndRecord)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.serveScan(w, r, s.accessService.Validate)
}

type scanFunc func(context.Context, types.AccessRequest) (types.AccessResponse, error)

func (s *Server) serveScan(w http.ResponseWriter, r *http.Request, decide scanFunc) {
	req, err := readAccessRequest(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	resp, err := decide(r.Context(), req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.write(w, r, http.StatusOK, resp)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	resp, err := s.accessService.Usage(r.Context(), r.PathValue("identifier"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	resp, err := s.accessService.History(r.Context(), r.PathValue("identifier"), limit)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidIdentifier):
		s.writeError(w, r, http.StatusBadRequest, "invalid_identifier", err.Error())
	case errors.Is(err, service.ErrMemberNotFound):
		s.writeError(w, r, http.StatusNotFound, "member_not_found", err.Error())
	case errors.Is(err, service.ErrNoEnrollment):
		s.writeError(w, r, http.StatusNotFound, "no_enrollment", err.Error())
	case errors.Is(err, access.ErrInvariant):
		s.logger.Error("invariant violated", "route", r.Pattern, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
	default:
		s.logger.Error("request failed", "route", r.Pattern, "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	}
}

// write answers in protobuf when the caller spoke or asked for it.
func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsProtobuf(r) {
		msg, err := toStruct(v)
		if err != nil {
			s.logger.Error("proto encode failed", "error", err)
			http.Error(w, "proto encode error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	s.write(w, r, status, errorBody{Error: code, Message: msg})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
