package httpd

import (
	"fmt"
	"html"
	"os"
	"path"
	"strings"

	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
)

const indexForm = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	"<html><head><title>Static server</title></head>" +
	"<body><h1>Index of: %s</h1><ul>%s</ul></body></html>"

// DirectoryIndexPredicate matches GET requests whose path resolves
// under root to an existing directory.
func DirectoryIndexPredicate(root string) handler.Predicate {
	return func(r *request.Request) bool {
		if "GET" != r.Method() {
			return false
		}

		_, ok := isDirUnderRoot(root, r)

		return ok
	}
}

// DirectoryIndexAction renders an HTML listing of the resolved
// directory's entries, each linked by its absolute path: the request
// path joined with the entry name, anchored at "/".
func DirectoryIndexAction(root string) handler.Action {
	return func(conn handler.Conn, r *request.Request) error {
		full, ok := isDirUnderRoot(root, r)

		if !ok {
			_, err := conn.Write(notFoundResponse)

			return err
		}

		entries, err := os.ReadDir(full)

		if nil != err {
			_, werr := conn.Write(notFoundResponse)

			if nil != werr {
				return werr
			}

			return nil
		}

		base := strings.TrimSuffix(r.Path(), "/")
		var items strings.Builder

		for _, e := range entries {
			name := html.EscapeString(e.Name())
			href := "/" + strings.TrimPrefix(path.Join(base, e.Name()), "/")

			if e.IsDir() {
				fmt.Fprintf(&items, "<li><a href=\"%s/\">%s/</a></li>", href, name)
			} else {
				fmt.Fprintf(&items, "<li><a href=\"%s\">%s</a></li>", href, name)
			}
		}

		body := fmt.Sprintf(indexForm, html.EscapeString(r.Path()), items.String())
		_, err = conn.Write([]byte(body))

		return err
	}
}
