// Package httpd implements the collaborator handlers dispatched by
// the reactor's handler registry: static file serving, partial/HEAD
// responses, directory listing, and the 404/501 error leaves. It is
// the Go counterpart of the original source's src/tasks/*.c handlers,
// wired together through the same (predicate, action) contract the
// reactor core already speaks.
package httpd

import (
	"os"
	"path/filepath"
	"strings"
)

// resolve confines requestPath (as taken from a parsed HTTP request,
// always starting with "/") to root, returning the absolute
// filesystem path and whether it stays within the root after
// cleaning. The request path is cleaned as a rooted path first, so
// leading ".." segments are dropped and "/../etc/passwd" resolves to
// root/etc/passwd; the prefix check rejects anything that still lands
// outside root.
func resolve(root, requestPath string) (string, bool) {
	cleanRoot, err := filepath.Abs(root)

	if nil != err {
		return "", false
	}

	joined := filepath.Join(cleanRoot, filepath.Clean("/"+requestPath))

	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", false
	}

	return joined, true
}

func pathExists(full string) bool {
	_, err := os.Stat(full)

	return nil == err
}
