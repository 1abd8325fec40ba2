// Package handler implements the ordered collaborator registry: a
// sequence of (predicate, action) pairs searched in registration
// order, first match wins. This mirrors handler_list_t/handler_t in
// the original source, generalized from its C function-pointer-table
// shape to Go closures, using the reactor's own list.List as the
// backing registry instead of a bespoke linked list.
package handler

import (
	"errors"

	"github.com/muji40k/fileserverd/internal/reactor/list"
	"github.com/muji40k/fileserverd/internal/reactor/request"
)

// ErrNotFound is returned by Find when no registered entry's
// predicate matches the request.
var ErrNotFound = errors.New("handler: no matching handler")

// Predicate reports whether Action should handle request.
type Predicate func(r *request.Request) bool

// Action serves r, writing the full response (status line, headers,
// body) to conn.
type Action func(conn Conn, r *request.Request) error

// Conn is the minimal connection surface an Action needs to write a
// response. It is satisfied by net.Conn.
type Conn interface {
	Write(p []byte) (int, error)
}

type entry struct {
	name      string
	predicate Predicate
	action    Action
}

// List is an ordered registry of collaborator handlers.
type List struct {
	entries *list.List[entry]
}

// New returns an empty registry.
func New() *List {
	return &List{entries: list.New[entry]()}
}

// Push appends a new entry at the end of the registry. Entries
// registered earlier take priority: Find always returns the first
// match in registration order, so a catch-all predicate must be
// pushed last.
func (l *List) Push(name string, predicate Predicate, action Action) {
	l.entries.PushBack(entry{name: name, predicate: predicate, action: action})
}

// Find returns the name and action of the first registered entry
// whose predicate matches r.
func (l *List) Find(r *request.Request) (string, Action, error) {
	found, ok := l.entries.FindFirst(func(e *entry) bool {
		return e.predicate(r)
	})

	if !ok {
		return "", nil, ErrNotFound
	}

	return found.name, found.action, nil
}

// Dispatch finds and invokes the first matching handler for r,
// writing its response to conn. It returns ErrNotFound if nothing
// matched, which callers should translate into the fallback response
// rather than treat as a protocol error.
func Dispatch(l *List, conn Conn, r *request.Request) error {
	_, action, err := l.Find(r)

	if nil != err {
		return err
	}

	return action(conn, r)
}
