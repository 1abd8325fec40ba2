// Package mux implements the multiplexer: a thread-safe registry of
// socket entries with readiness waiting (via unix.Select) and idle
// expiry sweeping. It is a direct translation of multiplexer.c's
// entry list and select(2) loop, with entries held in the reactor's
// list.List and raw timeval math replaced by time.Time.
package mux

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/muji40k/fileserverd/internal/reactor/list"
)

// ErrOverflow is returned by Add when fd exceeds the readiness
// ceiling (FD_SETSIZE) that unix.Select can track in one call.
var ErrOverflow = errors.New("mux: fd exceeds readiness ceiling")

// Interest describes which directions a socket entry is waiting on.
type Interest int

const (
	Read Interest = 1 << iota
	Write
)

func (i Interest) wantsRead() bool  { return 0 != i&Read }
func (i Interest) wantsWrite() bool { return 0 != i&Write }

type entry struct {
	fd        int
	interest  Interest
	enteredAt time.Time
	timeout   time.Duration
}

func (e entry) expired(now time.Time) bool {
	return 0 < e.timeout && now.Sub(e.enteredAt) >= e.timeout
}

// Multiplexer is a thread-safe set of (fd, interest, deadline)
// entries, backed by the same ordered list.List the handler registry
// uses for its own entries. All public operations lock a single
// coarse mutex for their whole body: critical sections are O(n) over
// a small n, so fine-grained locking buys nothing here (mirrors the
// source's single pthread_mutex_t guarding the whole entry list).
type Multiplexer struct {
	mu      sync.Mutex
	entries *list.List[entry]
}

// New returns an empty multiplexer.
func New() *Multiplexer {
	return &Multiplexer{entries: list.New[entry]()}
}

// Add registers fd with the given interest and idle timeout.
// timeout == 0 means the entry never expires. It rejects
// fd >= unix.FD_SETSIZE with ErrOverflow, since unix.Select cannot
// represent a larger descriptor.
func (m *Multiplexer) Add(fd int, interest Interest, timeout time.Duration) error {
	if fd >= unix.FD_SETSIZE {
		return ErrOverflow
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.PushBack(entry{
		fd:        fd,
		interest:  interest,
		enteredAt: time.Now(),
		timeout:   timeout,
	})

	return nil
}

// Wait blocks until at least one registered fd satisfies all of its
// requested interests, or timeout elapses, returning the list of
// ready fds. On EINTR it returns (nil, nil) rather than an error,
// matching the source's treatment of a signal-interrupted select(2)
// as an empty, non-fatal tick.
func (m *Multiplexer) Wait(timeout time.Duration) ([]int, error) {
	m.mu.Lock()
	snapshot := make([]entry, 0, m.entries.Len())
	m.entries.Each(func(e *entry) bool {
		snapshot = append(snapshot, *e)

		return true
	})
	m.mu.Unlock()

	if 0 == len(snapshot) {
		time.Sleep(timeout)

		return nil, nil
	}

	var readFds, writeFds unix.FdSet
	maxFd := 0

	for _, e := range snapshot {
		if e.interest.wantsRead() {
			fdSet(&readFds, e.fd)
		}

		if e.interest.wantsWrite() {
			fdSet(&writeFds, e.fd)
		}

		if e.fd > maxFd {
			maxFd = e.fd
		}
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())

	n, err := unix.Select(maxFd+1, &readFds, &writeFds, nil, &tv)

	if nil != err {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}

		return nil, err
	}

	if 0 == n {
		return nil, nil
	}

	var ready []int

	for _, e := range snapshot {
		readOK := !e.interest.wantsRead() || fdIsSet(&readFds, e.fd)
		writeOK := !e.interest.wantsWrite() || fdIsSet(&writeFds, e.fd)

		if readOK && writeOK {
			ready = append(ready, e.fd)
		}
	}

	return ready, nil
}

// SweepExpired removes, in a single pass, every entry whose timeout
// has elapsed, returning their fds. Entries with timeout == 0 are
// immortal and never swept.
func (m *Multiplexer) SweepExpired() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := m.entries.RemoveWhere(func(e *entry) bool { return e.expired(now) })

	expired := make([]int, 0, len(removed))

	for _, e := range removed {
		expired = append(expired, e.fd)
	}

	return expired
}

// Remove deletes the (at most one) entry for fd. A missing fd is not
// an error.
func (m *Multiplexer) Remove(fd int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.entries.FindFirst(func(e *entry) bool { return e.fd == fd })

	if ok {
		m.entries.RemoveSingle(target)
	}
}

// Clear removes every entry, returning their fds so the caller can
// close them. Used on server shutdown.
func (m *Multiplexer) Clear() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	fds := make([]int, 0, m.entries.Len())

	m.entries.Each(func(e *entry) bool {
		fds = append(fds, e.fd)

		return true
	})

	m.entries = list.New[entry]()

	return fds
}

// Len reports the number of currently registered entries.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries.Len()
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return 0 != set.Bits[fd/64]&(1<<(uint(fd)%64))
}
