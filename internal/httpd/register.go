package httpd

import "github.com/muji40k/fileserverd/internal/reactor/handler"

// Register wires every collaborator handler into l in priority order:
// static file, partial/HEAD, directory index, 404, then the terminal
// 501 fallback. root is the confinement boundary every path-resolving
// predicate checks against.
func Register(l *handler.List, root string) {
	l.Push("static-file", StaticFilePredicate(root), StaticFileAction(root))
	l.Push("partial-head", PartialHeadPredicate(root), PartialHeadAction(root))
	l.Push("directory-index", DirectoryIndexPredicate(root), DirectoryIndexAction(root))
	l.Push("not-found", NotFoundPredicate(root), NotFoundAction())
	l.Push("fallback", FallbackPredicate(), FallbackAction())
}
