package httpd

import (
	"fmt"
	"io"
	"os"

	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
)

var notFoundResponse = []byte("HTTP/1.1 404 Not Found\r\n\r\n")

// isRegularFileUnderRoot resolves r's path against root and reports
// whether it names an existing regular file.
func isRegularFileUnderRoot(root string, r *request.Request) (string, bool) {
	full, ok := resolve(root, r.Path())

	if !ok {
		return "", false
	}

	info, err := os.Stat(full)

	if nil != err || info.IsDir() {
		return "", false
	}

	return full, true
}

// isDirUnderRoot resolves r's path against root and reports whether
// it names an existing directory.
func isDirUnderRoot(root string, r *request.Request) (string, bool) {
	full, ok := resolve(root, r.Path())

	if !ok {
		return "", false
	}

	info, err := os.Stat(full)

	if nil != err || !info.IsDir() {
		return "", false
	}

	return full, true
}

// StaticFilePredicate matches GET requests whose path resolves under
// root to an existing regular file.
func StaticFilePredicate(root string) handler.Predicate {
	return func(r *request.Request) bool {
		if "GET" != r.Method() {
			return false
		}

		_, ok := isRegularFileUnderRoot(root, r)

		return ok
	}
}

// PartialHeadPredicate matches HEAD requests whose path resolves
// under root to an existing regular file.
func PartialHeadPredicate(root string) handler.Predicate {
	return func(r *request.Request) bool {
		if "HEAD" != r.Method() {
			return false
		}

		_, ok := isRegularFileUnderRoot(root, r)

		return ok
	}
}

// StaticFileAction streams the resolved file's bytes after a
// Content-Type header selected from the MIME table, falling back to
// content sniffing. There is no Content-Length and no range support
// (per Non-goals): the response ends when the connection closes.
func StaticFileAction(root string) handler.Action {
	return serveFile(root, false)
}

// PartialHeadAction emits only the headers a StaticFileAction would
// produce for the same path, reusing its header computation but
// never writing a body, per HTTP HEAD semantics.
func PartialHeadAction(root string) handler.Action {
	return serveFile(root, true)
}

func serveFile(root string, headOnly bool) handler.Action {
	return func(conn handler.Conn, r *request.Request) error {
		full, ok := isRegularFileUnderRoot(root, r)

		if !ok {
			_, err := conn.Write(notFoundResponse)

			return err
		}

		f, err := os.Open(full)

		if nil != err {
			_, werr := conn.Write(notFoundResponse)

			if nil != werr {
				return werr
			}

			return nil
		}

		defer f.Close()

		mt := lookupMIME(full, func() ([]byte, error) {
			buf := make([]byte, 512)
			n, err := f.ReadAt(buf, 0)

			if nil != err && 0 == n {
				return nil, err
			}

			return buf[:n], nil
		})

		header := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: %s\r\n%s\r\n", mt.mime, mt.addition)

		if _, err := conn.Write([]byte(header)); nil != err {
			return err
		}

		if headOnly {
			return nil
		}

		_, err = io.Copy(conn, f)

		return err
	}
}
