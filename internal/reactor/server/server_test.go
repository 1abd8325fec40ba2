package server_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/muji40k/fileserverd/internal/logging"
	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/request"
	"github.com/muji40k/fileserverd/internal/reactor/server"
	"github.com/muji40k/fileserverd/internal/reactor/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, threads int, reg *handler.List) *server.Server {
	t.Helper()

	counters, _ := stats.New()
	logger := logging.New(noopWriter{}, -8)

	s, err := server.New(0, threads, reg, 200*time.Millisecond, counters, logger)
	require.NoError(t, err)

	go func() {
		_ = s.Run()
	}()

	t.Cleanup(s.Stop)

	return s
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func echoRegistry() *handler.List {
	l := handler.New()
	l.Push("any", func(*request.Request) bool { return true }, func(conn handler.Conn, r *request.Request) error {
		_, err := conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhi"))

		return err
	})

	return l
}

func TestServeOneRequest(t *testing.T) {
	s := newTestServer(t, 4, echoRegistry())

	// listen(0) binds an ephemeral port; poll until the socket accepts
	// a connection rather than asserting a fixed port number.
	var conn net.Conn
	var err error
	require.Eventually(t, func() bool {
		conn, err = net.DialTimeout("tcp", addrFor(t, s), 50*time.Millisecond)

		return nil == err
	}, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /a HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "200 OK")
}

func TestOverloadReturns503(t *testing.T) {
	block := make(chan struct{})
	reg := handler.New()
	reg.Push("any", func(*request.Request) bool { return true }, func(conn handler.Conn, r *request.Request) error {
		<-block

		return nil
	})

	s := newTestServer(t, 1, reg)

	conn1, err := net.DialTimeout("tcp", addrFor(t, s), time.Second)
	require.NoError(t, err)
	defer conn1.Close()
	_, err = conn1.Write([]byte("GET /a HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	// Give the single worker time to pick up conn1 and start blocking.
	time.Sleep(200 * time.Millisecond)

	conn2, err := net.DialTimeout("tcp", addrFor(t, s), time.Second)
	require.NoError(t, err)
	defer conn2.Close()
	_, err = conn2.Write([]byte("GET /b HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn2)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "503")

	close(block)
}

func TestIdleConnectionTimesOut(t *testing.T) {
	// The registry is irrelevant here: a connection that never sends a
	// request byte never becomes read-ready, so it is never dispatched
	// to a worker at all. It is only ever closed by the multiplexer's
	// idle sweep once connectionTimeout elapses.
	s := newTestServer(t, 1, echoRegistry())

	conn, err := net.DialTimeout("tcp", addrFor(t, s), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Never write a request: the connection sits registered with the
	// multiplexer, idle, until its 200ms connectionTimeout elapses.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "503")

	// The server closes the connection right after writing the refusal
	// body: draining the rest must reach EOF, not another request cycle.
	_, err = io.Copy(io.Discard, reader)
	assert.NoError(t, err)

	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestStopBreaksAcceptLoop(t *testing.T) {
	s := newTestServer(t, 2, echoRegistry())
	addr := addrFor(t, s)

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)

		if nil == err {
			conn.Close()
		}

		return nil == err
	}, 2*time.Second, 20*time.Millisecond)

	s.Stop()

	require.Eventually(t, func() bool {
		_, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)

		return nil != err
	}, 2*time.Second, 20*time.Millisecond)
}

// addrFor resolves the ephemeral port the OS assigned when the
// server was created with port 0.
func addrFor(t *testing.T, s *server.Server) string {
	t.Helper()

	return fmt.Sprintf("127.0.0.1:%d", s.Addr())
}
