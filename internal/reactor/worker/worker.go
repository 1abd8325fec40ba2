// Package worker implements the fixed-size worker pool: each worker
// is a goroutine with a depth-1 mailbox channel, cycling through
// dead/idle/active states exactly as worker.c's state machine does,
// translated from its socketpair-based wakeup mechanism to a Go
// channel.
package worker

import (
	"errors"
	"net"
	"sync"

	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
)

// Failure kinds recorded in a worker's lastError, mirroring the
// taxonomy in worker.c's worker_error_t. ErrCallback is defined but
// never recorded: OnDone returns no error.
var (
	ErrRead          = errors.New("worker: failed to read request")
	ErrWrongRead     = errors.New("worker: malformed request")
	ErrWrongAction   = errors.New("worker: no matching handler")
	ErrInvalidAction = errors.New("worker: handler registry invalid")
	ErrInAction      = errors.New("worker: handler action failed")
	ErrCallback      = errors.New("worker: completion callback failed")
)

// Submission failures.
var (
	ErrNotAlive = errors.New("worker: not alive")
	ErrActive   = errors.New("worker: already active")
	ErrWrite    = errors.New("worker: mailbox send failed")
	ErrOverload = errors.New("worker: no idle worker available")
)

// shutdownFd is the mailbox sentinel value that tells a worker
// goroutine to exit.
const shutdownFd = -1

// ConnFactory resolves a dispatched fd into a usable net.Conn. In
// production this wraps an already-accepted file descriptor; tests
// can substitute an in-memory connection.
type ConnFactory func(fd int) (net.Conn, error)

// OnDone is invoked unconditionally after each handled connection,
// regardless of success. Its contract includes closing conn and
// updating shared stats.
type OnDone func(fd int, conn net.Conn, err error)

// OnError is invoked only when handling failed, before OnDone, so
// a best-effort HTTP error response can still be written to conn.
// Preserves the source's error-before-close ordering.
type OnError func(conn net.Conn, kind error)

// Worker is one entry in the pool: a goroutine reading fds off its
// mailbox and running them through the registry.
type Worker struct {
	mu     sync.Mutex
	alive  bool
	active bool

	lastError error

	mailbox chan int
	done    chan struct{}

	registry *handler.List
	conns    ConnFactory
	onDone   OnDone
	onError  OnError
}

// New allocates a worker in the dead state. Call Init to spawn it.
func New(registry *handler.List, conns ConnFactory, onDone OnDone, onError OnError) *Worker {
	return &Worker{
		registry: registry,
		conns:    conns,
		onDone:   onDone,
		onError:  onError,
	}
}

// Init spawns the worker goroutine and its mailbox channel,
// transitioning dead -> alive/idle.
func (w *Worker) Init() {
	w.mu.Lock()
	w.mailbox = make(chan int, 1)
	w.done = make(chan struct{})
	w.alive = true
	w.active = false
	w.lastError = nil
	w.mu.Unlock()

	go w.run(w.mailbox, w.done)
}

// IsAlive reports whether the worker's goroutine is running.
func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.alive
}

// IsActive reports whether the worker currently owns a connection.
func (w *Worker) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.active
}

// LastError returns the failure kind recorded by the most recent
// handled connection, if any.
func (w *Worker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lastError
}

// Submit hands fd to this worker if it is alive and idle.
func (w *Worker) Submit(fd int) error {
	w.mu.Lock()

	if !w.alive {
		w.mu.Unlock()

		return ErrNotAlive
	}

	if w.active {
		w.mu.Unlock()

		return ErrActive
	}

	mailbox := w.mailbox
	w.mu.Unlock()

	select {
	case mailbox <- fd:
		return nil
	default:
		return ErrWrite
	}
}

// WakeUp resets a dead worker back to alive/idle with a fresh
// goroutine. It is a no-op for a worker that is already alive.
func (w *Worker) WakeUp() {
	if w.IsAlive() {
		return
	}

	w.Init()
}

// Close sends the shutdown sentinel and blocks until the goroutine
// exits. The mailbox channel is not closed; a later Init replaces it
// with a fresh one.
func (w *Worker) Close() {
	w.mu.Lock()

	if !w.alive {
		w.mu.Unlock()

		return
	}

	mailbox, done := w.mailbox, w.done
	w.mu.Unlock()

	mailbox <- shutdownFd
	<-done
}

func (w *Worker) run(mailbox chan int, done chan struct{}) {
	defer close(done)

	req := request.New()

	for fd := range mailbox {
		if shutdownFd == fd {
			w.mu.Lock()
			w.alive = false
			w.mu.Unlock()

			return
		}

		w.handle(req, fd)
	}
}

func (w *Worker) handle(req *request.Request, fd int) {
	w.mu.Lock()
	w.active = true
	w.mu.Unlock()

	var failKind error

	conn, err := w.conns(fd)

	if nil != err {
		failKind = ErrRead
	} else {
		failKind = w.serve(req, conn)
	}

	w.mu.Lock()
	w.lastError = failKind
	w.mu.Unlock()

	if nil != failKind && nil != w.onError && nil != conn {
		w.onError(conn, failKind)
	}

	w.onDone(fd, conn, failKind)

	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
}

func (w *Worker) serve(req *request.Request, conn net.Conn) error {
	if err := req.Read(conn); nil != err {
		return ErrWrongRead
	}

	_, action, err := w.registry.Find(req)

	if nil != err {
		return ErrWrongAction
	}

	if nil == action {
		return ErrInvalidAction
	}

	if err := action(conn, req); nil != err {
		return ErrInAction
	}

	return nil
}

// Dispatch scans workers in order for the first alive, idle one and
// submits fd to it. If every worker is active, it returns ErrOverload
// so the caller can render a 503.
func Dispatch(workers []*Worker, fd int) error {
	for _, w := range workers {
		w.mu.Lock()
		eligible := w.alive && !w.active
		w.mu.Unlock()

		if !eligible {
			continue
		}

		err := w.Submit(fd)

		if nil == err {
			return nil
		}

		if errors.Is(err, ErrNotAlive) || errors.Is(err, ErrActive) {
			continue
		}

		return err
	}

	return ErrOverload
}

// WakeAll resurrects every dead worker in the pool. Idempotent for
// workers already alive.
func WakeAll(workers []*Worker) {
	for _, w := range workers {
		w.WakeUp()
	}
}
