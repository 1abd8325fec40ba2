// Package stats implements the process-global request counters:
// accepted, correct, rejected, refused, timeout, error. It is the Go
// counterpart of the static counters in server.c, guarded here by a
// single sync.Mutex in the shape of rclone's accounting.Stats, with
// each counter mirrored into a prometheus/client_golang Counter so
// the same numbers are scrapeable without changing the mutex-guarded
// API callers already use.
package stats

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds the six request outcome tallies tracked by the
// reactor. The zero value is not usable; use New.
type Counters struct {
	mu    sync.Mutex
	start time.Time

	accepted int64
	correct  int64
	rejected int64
	refused  int64
	timeout  int64
	errors   int64

	promAccepted prometheus.Counter
	promCorrect  prometheus.Counter
	promRejected prometheus.Counter
	promRefused  prometheus.Counter
	promTimeout  prometheus.Counter
	promErrors   prometheus.Counter
}

// New creates a Counters instance with its own private Prometheus
// registry, so multiple servers in the same process (as in tests)
// don't collide on metric names.
func New() (*Counters, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fileserverd",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)

		return c
	}

	c := &Counters{
		start:        time.Now(),
		promAccepted: mk("connections_accepted_total", "Connections accepted by the acceptor."),
		promCorrect:  mk("requests_correct_total", "Requests served without error."),
		promRejected: mk("connections_rejected_total", "Connections rejected at the readiness ceiling."),
		promRefused:  mk("connections_refused_total", "Connections refused due to worker-pool overload."),
		promTimeout:  mk("connections_timeout_total", "Connections closed for idle timeout."),
		promErrors:   mk("requests_error_total", "Requests that failed while being served."),
	}

	return c, reg
}

// IncAccepted records a newly accepted connection.
func (c *Counters) IncAccepted() { c.inc(&c.accepted, c.promAccepted) }

// IncCorrect records a request served without error.
func (c *Counters) IncCorrect() { c.inc(&c.correct, c.promCorrect) }

// IncRejected records a connection rejected at the readiness ceiling.
func (c *Counters) IncRejected() { c.inc(&c.rejected, c.promRejected) }

// IncRefused records a connection refused for worker-pool overload.
func (c *Counters) IncRefused() { c.inc(&c.refused, c.promRefused) }

// IncTimeout records a connection closed for idle timeout.
func (c *Counters) IncTimeout() { c.inc(&c.timeout, c.promTimeout) }

// IncError records a request that failed while being served. Named
// IncError (not IncErrors) deliberately: the source's bug was a local
// variable named "error" shadowing this counter inside the worker's
// error callback, so the call site here is never allowed to declare a
// same-named local.
func (c *Counters) IncError() { c.inc(&c.errors, c.promErrors) }

func (c *Counters) inc(field *int64, prom prometheus.Counter) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()

	prom.Inc()
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Accepted, Correct, Rejected, Refused, Timeout, Errors int64
	Elapsed                                               time.Duration
}

// Snapshot returns a consistent copy of all counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Accepted: c.accepted,
		Correct:  c.correct,
		Rejected: c.rejected,
		Refused:  c.refused,
		Timeout:  c.timeout,
		Errors:   c.errors,
		Elapsed:  time.Since(c.start),
	}
}

// String renders the final shutdown statistics line.
func (c *Counters) String() string {
	s := c.Snapshot()

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf,
		"accepted=%d correct=%d rejected=%d refused=%d timeout=%d error=%d elapsed=%v",
		s.Accepted, s.Correct, s.Rejected, s.Refused, s.Timeout, s.Errors, s.Elapsed)

	return buf.String()
}
