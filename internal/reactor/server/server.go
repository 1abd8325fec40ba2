// Package server implements the acceptor/reactor loop: a non-blocking
// listening socket polled through the multiplexer, dispatching ready
// client fds to a fixed worker pool. It is a direct translation of
// server.c's tick structure (wait, dispatch, sweep, revive) and its
// canned error-response bodies.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/mux"
	"github.com/muji40k/fileserverd/internal/reactor/stats"
	"github.com/muji40k/fileserverd/internal/reactor/worker"
)

// TickPeriod is the reactor quantum: how long each Wait call blocks
// for readiness before the loop re-checks the running flag.
const TickPeriod = 500 * time.Millisecond

// Server owns one listening socket, its multiplexer, and a fixed pool
// of workers.
type Server struct {
	id       string
	listenFd int
	port     int

	connectionTimeout time.Duration

	workers []*worker.Worker
	mux     *mux.Multiplexer
	stats   *stats.Counters
	logger  *slog.Logger

	running *atomic.Bool

	tracesMu sync.Mutex
	traces   map[int]string
}

// New creates a server bound to port with the given worker count,
// handler registry, and idle-connection timeout. The listening socket
// is created and bound, but not yet polled: call Run to start the
// accept loop.
func New(port, threads int, registry *handler.List, connectionTimeout time.Duration, counters *stats.Counters, logger *slog.Logger) (*Server, error) {
	if 0 >= threads {
		return nil, fmt.Errorf("server: thread count must be positive, got %d", threads)
	}

	if 0 > port {
		return nil, fmt.Errorf("server: port must be non-negative, got %d", port)
	}

	fd, actualPort, err := listen(port)

	if nil != err {
		return nil, err
	}

	s := &Server{
		id:                fmt.Sprintf("fileserverd:%d", actualPort),
		listenFd:          fd,
		port:              actualPort,
		connectionTimeout: connectionTimeout,
		mux:               mux.New(),
		stats:             counters,
		logger:            logger,
		running:           registerRunning(),
		traces:            make(map[int]string),
	}

	for i := 0; i < threads; i++ {
		w := worker.New(registry, s.connFromFD, s.onDone, s.onError)
		w.Init()
		s.workers = append(s.workers, w)
	}

	if err := s.mux.Add(fd, mux.Read, 0); nil != err {
		return nil, err
	}

	return s, nil
}

// listen creates a non-blocking IPv4 TCP listening socket with
// SO_REUSEADDR, bound to 0.0.0.0:port with backlog SOMAXCONN. It
// returns the socket fd and the actual bound port (port 0 asks the OS
// for an ephemeral one, used by tests to avoid fixed-port flakiness).
func listen(port int) (int, int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)

	if nil != err {
		return -1, 0, fmt.Errorf("server: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); nil != err {
		unix.Close(fd)

		return -1, 0, fmt.Errorf("server: setsockopt SO_REUSEADDR: %w", err)
	}

	if err := unix.SetNonblock(fd, true); nil != err {
		unix.Close(fd)

		return -1, 0, fmt.Errorf("server: set non-blocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}

	if err := unix.Bind(fd, addr); nil != err {
		unix.Close(fd)

		return -1, 0, fmt.Errorf("server: bind: %w", err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); nil != err {
		unix.Close(fd)

		return -1, 0, fmt.Errorf("server: listen: %w", err)
	}

	bound, err := unix.Getsockname(fd)

	if nil != err {
		unix.Close(fd)

		return -1, 0, fmt.Errorf("server: getsockname: %w", err)
	}

	actualPort := port

	if sa, ok := bound.(*unix.SockaddrInet4); ok {
		actualPort = sa.Port
	}

	return fd, actualPort, nil
}

// Stop clears this server's own running flag, without touching any
// other registered server. The accept loop observes this on its next
// tick boundary, same as a StopAll-triggered shutdown.
func (s *Server) Stop() {
	s.running.Store(false)
}

// Addr reports the port this server is bound to.
func (s *Server) Addr() int {
	return s.port
}

// Run executes the accept loop until the running flag is cleared,
// then performs an orderly shutdown. It returns nil on a graceful
// stop, or the first fatal OS error encountered while waiting for
// readiness.
func (s *Server) Run() error {
	for s.running.Load() {
		ready, err := s.mux.Wait(TickPeriod)

		if nil != err {
			return fmt.Errorf("server: wait: %w", err)
		}

		for _, fd := range ready {
			if fd == s.listenFd {
				s.acceptOne()
			} else {
				s.dispatchClient(fd)
			}
		}

		s.sweepTimeouts()
		worker.WakeAll(s.workers)
	}

	return s.shutdown()
}

func (s *Server) acceptOne() {
	nfd, _, err := unix.Accept(s.listenFd)

	if nil != err {
		if errors.Is(err, unix.EAGAIN) {
			return
		}

		s.logger.Error("accept failed", "error", err)

		return
	}

	if err := s.mux.Add(nfd, mux.Read|mux.Write, s.connectionTimeout); nil != err {
		unix.Write(nfd, rejectMessage)
		unix.Close(nfd)
		s.stats.IncRejected()

		return
	}

	s.tracesMu.Lock()
	s.traces[nfd] = uuid.NewString()
	s.tracesMu.Unlock()

	s.stats.IncAccepted()
}

// traceFor returns the trace id stamped on fd at accept time, and
// forgets it: each connection's trace id is surfaced exactly once, in
// the log line for its outcome.
func (s *Server) traceFor(fd int) string {
	s.tracesMu.Lock()
	defer s.tracesMu.Unlock()

	id := s.traces[fd]
	delete(s.traces, fd)

	return id
}

func (s *Server) dispatchClient(fd int) {
	err := worker.Dispatch(s.workers, fd)

	if errors.Is(err, worker.ErrOverload) {
		unix.Write(fd, refuseMessage)
		unix.Close(fd)
		s.stats.IncRefused()
		s.logger.Warn("connection refused: overload", "trace_id", s.traceFor(fd), "fd", fd)
	}

	// Whether dispatch succeeded or was refused, the acceptor's
	// bookkeeping for this fd is done: a successfully dispatched
	// connection is now owned by its worker, not the reactor.
	s.mux.Remove(fd)
}

func (s *Server) sweepTimeouts() {
	for _, fd := range s.mux.SweepExpired() {
		unix.Write(fd, refuseMessage)
		unix.Close(fd)
		s.stats.IncTimeout()
		s.logger.Warn("connection timed out", "trace_id", s.traceFor(fd), "fd", fd)
	}
}

func (s *Server) shutdown() error {
	unix.Close(s.listenFd)

	for _, fd := range s.mux.Clear() {
		if fd != s.listenFd {
			unix.Close(fd)
		}
	}

	for _, w := range s.workers {
		w.Close()
	}

	unregisterRunning(s.running)

	s.logger.Info("server stopped", "id", s.id, "stats", s.stats.String())

	return nil
}

// connFromFD adapts an accepted raw descriptor into a net.Conn for
// the worker pool. net.FileConn duplicates the descriptor internally,
// so the *os.File wrapper is closed immediately after.
func (s *Server) connFromFD(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), fmt.Sprintf("client-%d", fd))
	conn, err := net.FileConn(f)
	f.Close()

	if nil != err {
		return nil, fmt.Errorf("server: adapt fd %d: %w", fd, err)
	}

	return conn, nil
}

func (s *Server) onDone(fd int, conn net.Conn, err error) {
	if nil != conn {
		conn.Close()
	}

	traceID := s.traceFor(fd)

	if nil != err {
		s.stats.IncError()
		s.logger.Warn("request failed", "trace_id", traceID, "fd", fd, "error", err)
	} else {
		s.stats.IncCorrect()
		s.logger.Debug("request served", "trace_id", traceID, "fd", fd)
	}
}

func (s *Server) onError(conn net.Conn, kind error) {
	conn.Write(errorResponse(kind))
}
