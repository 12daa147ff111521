package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"github.com/mfittko/gitdrop/internal/deploy"
	"github.com/mfittko/gitdrop/internal/logging"
	"github.com/mfittko/gitdrop/internal/service"
)

const (
	ProcessPath      = "/api/process-github"
	DeployPath       = "/api/clone-and-deploy"
	DeployStreamPath = "/api/clone-and-deploy/ws"
	HealthPath       = "/healthz"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Service is the request-level behavior the server exposes.
type Service interface {
	ProcessFile(ctx context.Context, req service.ProcessRequest) (*service.ProcessResult, error)
	CloneAndDeploy(ctx context.Context, req service.DeployRequest, observe deploy.Observer) (*service.DeployResult, error)
}

// Server is the HTTP front end.
type Server struct {
	svc    Service
	logger *slog.Logger
	router *httprouter.Router

	// originPatterns are host patterns allowed as browser origins for CORS
	// and the websocket stream. "*" allows every origin.
	originPatterns []string
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins limits cross-origin callers to hosts matching one of
// patterns (path.Match syntax, for example "*.example.com").
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) {
		if len(patterns) > 0 {
			s.originPatterns = patterns
		}
	}
}

// New creates a Server and registers its routes.
func New(svc Service, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{svc: svc, logger: logger, router: httprouter.New(), originPatterns: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}

	s.router.POST(ProcessPath, s.handleProcess)
	s.router.POST(DeployPath, s.handleDeploy)
	s.router.GET(DeployStreamPath, s.handleDeployStream)
	s.router.GET(HealthPath, s.handleHealth)

	s.router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})
	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.Error("Recovered from panic", "path", r.URL.Path, "panic", fmt.Sprint(v))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return s
}

// Handler returns the router wrapped with CORS headers and request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withCORS(s.router))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Listening", "addr", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ProcessRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	// Once started, a delivery runs to completion even if the client leaves.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.svc.ProcessFile(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.DeployRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	res, err := s.svc.CloneAndDeploy(ctx, req, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// errorBody is the JSON error payload.
type errorBody struct {
	Error    string `json:"error"`
	Example  string `json:"example,omitempty"`
	Provided string `json:"provided,omitempty"`
	Details  string `json:"details,omitempty"`
}

func errorPayload(err error) (int, errorBody) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, errorBody{Error: "Internal server error"}
	}
	if svcErr.Invalid {
		return http.StatusBadRequest, errorBody{Error: svcErr.Message, Example: svcErr.Example, Provided: svcErr.Provided}
	}
	return http.StatusInternalServerError, errorBody{Error: svcErr.Message, Details: svcErr.Details}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorPayload(err)
	s.logger.Warn("Request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeBadBody(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body must be a JSON object", Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
