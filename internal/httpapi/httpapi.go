// Package httpapi is the HTTP boundary (spec §6.1): every registered
// operation reachable as /api/<name> by GET (arguments as query values)
// or POST (arguments in a JSON body), authenticated by an API key header and
// answering with the {success, operation, result} envelope.
//
// Routing is grounded on the pack's `github.com/go-chi/chi/v5` router
// (the teacher itself exposes no HTTP surface, only the Unix-socket
// protocol in internal/rpc) mounted the same way chi examples across
// the pack mount a flat handler-per-route tree.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/untoldecay/moobase/internal/logx"
	"github.com/untoldecay/moobase/internal/ops"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
	"github.com/untoldecay/moobase/internal/users"
)

// APIKeyHeader is the header carrying the caller's API key.
const APIKeyHeader = "X-Moobase-Api-Key"

type envelope struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Server wires the operation registry onto an http.Handler.
type Server struct {
	registry  *ops.Registry
	providers *ops.Providers
	users     *users.Store
	log       *logx.Logger
	mux       *chi.Mux
}

// New builds the HTTP boundary. Call Handler to get the http.Handler
// to pass to http.Server.
func New(registry *ops.Registry, providers *ops.Providers, userStore *users.Store, log *logx.Logger) *Server {
	s := &Server{registry: registry, providers: providers, users: userStore, log: log}
	s.mux = chi.NewRouter()
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.Recoverer)
	if log != nil {
		s.mux.Use(s.logRequests)
	}
	s.mux.HandleFunc("/api/*", s.handleOperation)
	return s
}

// Handler returns the wired http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// handleOperation resolves /api/<name> to a registry lookup and
// dispatches it: GET/HEAD calls take repeated ?arg= query values, POST
// calls a JSON {"args": [...]} body.
func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/")
	if name == "" {
		writeError(w, "", opserr.New(opserr.InvalidArgument, "missing operation name"))
		return
	}

	if _, ok := s.registry.Lookup(name); !ok {
		writeError(w, name, opserr.New(opserr.NotFound, "unknown operation %q", name))
		return
	}

	user, err := s.authenticate(r)
	if err != nil {
		writeError(w, name, err)
		return
	}

	args, err := s.readArgs(r)
	if err != nil {
		writeError(w, name, opserr.Wrap(opserr.ParseError, err, "decoding request"))
		return
	}

	result, err := s.registry.Dispatch(r.Context(), s.providers, name, user, args)
	if err != nil {
		writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Operation: name, Result: result})
}

// authenticate resolves the caller from the API key header, falling
// back to the permission-less Everyone system user for unauthenticated
// requests (hello/system-status are reachable that way; gated verbs
// reject Everyone via their RequiredPermission check in Dispatch).
func (s *Server) authenticate(r *http.Request) (*types.User, error) {
	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		u, _, err := s.users.Get(types.Everyone)
		return u, err
	}
	return s.users.GetByAPIKey(key)
}

func (s *Server) readArgs(r *http.Request) ([]string, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		if vals, ok := r.URL.Query()["arg"]; ok {
			return vals, nil
		}
		return nil, nil
	}

	var body struct {
		Args []string `json:"args"`
	}
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	return body.Args, nil
}

func writeError(w http.ResponseWriter, operation string, err error) {
	kind := opserr.KindOf(err)
	writeJSON(w, opserr.HTTPStatus(kind), envelope{
		Success:   false,
		Operation: operation,
		Error:     err.Error(),
		ErrorKind: string(kind),
	})
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
