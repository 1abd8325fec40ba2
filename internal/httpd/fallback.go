package httpd

import (
	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
)

var notImplementedResponse = []byte("HTTP/1.1 501 Not Implemented\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<html><head><title>Error occured</title></head>" +
	"<body><h1>Error</h1><p>Server can't process such request</p></body></html>")

// NotFoundPredicate matches any request whose path does not resolve
// under root at all (neither file nor directory).
func NotFoundPredicate(root string) handler.Predicate {
	return func(r *request.Request) bool {
		full, ok := resolve(root, r.Path())

		if !ok {
			return true
		}

		return !pathExists(full)
	}
}

// NotFoundAction emits the canned 404 response.
func NotFoundAction() handler.Action {
	return func(conn handler.Conn, r *request.Request) error {
		_, err := conn.Write(notFoundResponse)

		return err
	}
}

// FallbackPredicate always matches; it must be registered last so
// every other collaborator gets first refusal.
func FallbackPredicate() handler.Predicate {
	return func(*request.Request) bool { return true }
}

// FallbackAction emits the canned 501 response for any request no
// earlier handler claimed.
func FallbackAction() handler.Action {
	return func(conn handler.Conn, r *request.Request) error {
		_, err := conn.Write(notImplementedResponse)

		return err
	}
}
