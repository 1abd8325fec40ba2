package handler_test

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func methodPredicate(method string) handler.Predicate {
	return func(r *request.Request) bool { return r.Method() == method }
}

func writeTag(tag string) handler.Action {
	return func(conn handler.Conn, r *request.Request) error {
		_, err := conn.Write([]byte(tag))

		return err
	}
}

func TestFindFirstMatchWins(t *testing.T) {
	l := handler.New()
	l.Push("get", methodPredicate("GET"), writeTag("get-handler"))
	l.Push("any", func(*request.Request) bool { return true }, writeTag("fallback"))

	r := request.New()
	require.NoError(t, r.Read(rawConn("GET /a HTTP/1.1\r\n\r\n")))

	name, _, err := l.Find(r)
	require.NoError(t, err)
	assert.Equal(t, "get", name)
}

func TestFindFallsThroughToLaterEntry(t *testing.T) {
	l := handler.New()
	l.Push("get", methodPredicate("GET"), writeTag("get-handler"))
	l.Push("any", func(*request.Request) bool { return true }, writeTag("fallback"))

	r := request.New()
	require.NoError(t, r.Read(rawConn("POST /a HTTP/1.1\r\n\r\n")))

	name, _, err := l.Find(r)
	require.NoError(t, err)
	assert.Equal(t, "any", name)
}

func TestFindNotFound(t *testing.T) {
	l := handler.New()
	l.Push("get", methodPredicate("GET"), writeTag("get-handler"))

	r := request.New()
	require.NoError(t, r.Read(rawConn("POST /a HTTP/1.1\r\n\r\n")))

	_, _, err := l.Find(r)
	assert.True(t, errors.Is(err, handler.ErrNotFound))
}

func TestDispatchInvokesAction(t *testing.T) {
	l := handler.New()
	l.Push("get", methodPredicate("GET"), writeTag("ok"))

	r := request.New()
	require.NoError(t, r.Read(rawConn("GET /a HTTP/1.1\r\n\r\n")))

	var buf bytes.Buffer
	require.NoError(t, handler.Dispatch(l, &buf, r))
	assert.Equal(t, "ok", buf.String())
}

func rawConn(raw string) net.Conn {
	client, server := net.Pipe()

	go func() {
		_, _ = client.Write([]byte(raw))
		client.Close()
	}()

	return server
}
