package server

import (
	"errors"
	"fmt"

	"github.com/muji40k/fileserverd/internal/reactor/worker"
)

const errorPageForm = "HTTP/1.1 %d %s\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<html><head><title>Error occured</title></head>" +
	"<body><h1>Error</h1><p>%s</p></body></html>"

// errorResponse renders the canned HTML error body for a worker
// failure kind, mirroring server.c's FORM/worker_error_func switch.
func errorResponse(kind error) []byte {
	code, msg, desc := 500, "Internal Server Error", "Unexpected error"

	switch {
	case errors.Is(kind, worker.ErrWrongAction):
		code, msg, desc = 501, "Not Implemented", "Server can't process such request"
	case errors.Is(kind, worker.ErrRead),
		errors.Is(kind, worker.ErrWrongRead),
		errors.Is(kind, worker.ErrInvalidAction),
		errors.Is(kind, worker.ErrInAction),
		errors.Is(kind, worker.ErrCallback):
		desc = "Server internal error"
	}

	return []byte(fmt.Sprintf(errorPageForm, code, msg, desc))
}

// refuseMessage is sent verbatim to a connection that cannot be
// dispatched because every worker is active, and to a connection
// swept for idle timeout.
var refuseMessage = []byte("HTTP/1.1 503 Service Unavailable\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<html><head><title>Resource Busy</title></head>" +
	"<body><h1>Resource Busy</h1>" +
	"<p>Your request cannot be completed at this time. Please try again later.</p>" +
	"</body></html>")

// rejectMessage is sent to a connection that cannot be registered
// with the multiplexer because it would exceed the readiness ceiling.
var rejectMessage = []byte("HTTP/1.1 503 Service Unavailable\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<html><head><title>Resource Busy</title></head>" +
	"<body><h1>Resource Busy</h1>" +
	"<p>Too many open connections. Please try again later.</p></body></html>")
