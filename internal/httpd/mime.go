package httpd

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// fileType mirrors the source's file_type_t: a MIME type and an extra
// response header line appended after Content-Type (empty for known
// types, "Content-Disposition: attachment\r\n" for the unknown
// fallback). The extension is the key under which mimeTable holds it.
type fileType struct {
	mime, addition string
}

// mimeTable is the static extension table (§6), matched
// case-insensitively on the portion of the path after the last '.',
// provided that '.' occurs after the last '/'.
var mimeTable = map[string]fileType{
	"txt":  {mime: "text/plain; charset=utf-8"},
	"html": {mime: "text/html; charset=utf-8"},
	"htm":  {mime: "text/html; charset=utf-8"},
	"css":  {mime: "text/css; charset=utf-8"},
	"js":   {mime: "text/javascript; charset=utf-8"},
	"json": {mime: "application/json"},
	"png":  {mime: "image/png"},
	"jpg":  {mime: "image/jpeg"},
	"jpeg": {mime: "image/jpeg"},
	"gif":  {mime: "image/gif"},
	"svg":  {mime: "image/svg+xml"},
	"pdf":  {mime: "application/pdf"},
}

var unknownType = fileType{
	mime:     "application/octet-stream",
	addition: "Content-Disposition: attachment\r\n",
}

// ext returns the lower-cased extension of path (without the dot),
// or "" if path has no extension after its final path separator.
func ext(path string) string {
	slash := strings.LastIndexByte(path, '/')
	dot := strings.LastIndexByte(path, '.')

	if dot < 0 || dot < slash {
		return ""
	}

	return strings.ToLower(path[dot+1:])
}

// lookupMIME resolves path's extension against the static table.
// When the extension is absent from the table, it falls back to
// content-sniffing the first portion of data with
// gabriel-vasile/mimetype; if that also yields nothing specific, the
// unknown-type fallback (application/octet-stream + attachment) is
// used.
func lookupMIME(path string, sniff func() ([]byte, error)) fileType {
	if t, ok := mimeTable[ext(path)]; ok {
		return t
	}

	if nil == sniff {
		return unknownType
	}

	data, err := sniff()

	if nil != err || 0 == len(data) {
		return unknownType
	}

	detected := mimetype.Detect(data)

	if nil == detected || "application/octet-stream" == detected.String() {
		return unknownType
	}

	return fileType{mime: detected.String()}
}
