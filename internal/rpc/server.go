package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/untoldecay/moobase/internal/logx"
	"github.com/untoldecay/moobase/internal/ops"
	"github.com/untoldecay/moobase/internal/types"
	"github.com/untoldecay/moobase/internal/users"
)

// Server is the worker-channel listener: one goroutine accepting Unix
// socket connections, each handled by its own goroutine reading
// newline-delimited Requests and writing newline-delimited Responses.
// Grounded on the teacher's daemon Server (internal/rpc/server_core.go),
// stripped of its issue-tracker mutation/event plumbing and retargeted
// to dispatch through ops.Registry.
type Server struct {
	socketPath string
	registry   *ops.Registry
	providers  *ops.Providers
	users      *users.Store
	log        *logx.Logger

	requestTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a worker-channel server. socketPath is the Unix
// socket it will listen on once Start is called.
func NewServer(socketPath string, registry *ops.Registry, providers *ops.Providers, userStore *users.Store, log *logx.Logger) *Server {
	return &Server{
		socketPath:     socketPath,
		registry:       registry,
		providers:      providers,
		users:          userStore,
		log:            log,
		requestTimeout: 30 * time.Second,
	}
}

// Start binds the socket and begins accepting connections in the
// background. Call Stop to shut down.
func (s *Server) Start() error {
	if err := EnsureSocketDir(s.socketPath); err != nil {
		return err
	}
	_ = CleanupSocketDir(s.socketPath) // clear a stale socket from a crashed prior run

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Stop closes the listener and waits for in-flight connections to
// finish, then removes the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	err := l.Close()
	s.wg.Wait()
	_ = CleanupSocketDir(s.socketPath)
	return err
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			return // listener closed by Stop
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return // client disconnected
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Success: false, Error: "malformed request: " + err.Error()})
			continue
		}

		resp := s.dispatch(&req)
		s.writeResponse(conn, resp)
	}
}

func (s *Server) dispatch(req *Request) Response {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	user, err := s.resolveUser(req.APIKey)
	if err != nil {
		return errorResponse(req.RequestID, err)
	}

	result, err := s.registry.Dispatch(ctx, s.providers, req.Operation, user, req.Args)
	if err != nil {
		if s.log != nil {
			s.log.Warn("worker channel operation failed", "operation", req.Operation, "err", err)
		}
		return errorResponse(req.RequestID, err)
	}
	return Response{RequestID: req.RequestID, Success: true, Result: result}
}

// resolveUser authenticates the caller the same way the HTTP boundary
// does: by API key, falling back to the permission-less Everyone
// system user when no key is presented (hello/system-status are open
// to it; gated ops reject it via their RequiredPermission check).
func (s *Server) resolveUser(apiKey string) (*types.User, error) {
	if apiKey == "" {
		u, _, err := s.users.Get(types.Everyone)
		return u, err
	}
	return s.users.GetByAPIKey(apiKey)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	writer := bufio.NewWriter(conn)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}
