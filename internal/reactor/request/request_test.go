package request_test

import (
	"net"
	"testing"
	"time"

	"github.com/muji40k/fileserverd/internal/reactor/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeWrite writes raw onto one end of a net.Pipe and returns the
// other end for the parser to read from. The write happens in a
// goroutine since net.Pipe is unbuffered and synchronous.
func pipeWrite(t *testing.T, raw string) net.Conn {
	t.Helper()
	client, server := net.Pipe()

	go func() {
		_, _ = client.Write([]byte(raw))
		client.Close()
	}()

	return server
}

func TestReadRoundTrip(t *testing.T) {
	raw := "GET /a HTTP/1.1\r\nHost: example.com\r\nX-Foo: bar\r\n\r\n"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	require.NoError(t, r.Read(conn))

	assert.Equal(t, "GET", r.Method())
	assert.Equal(t, "/a", r.Path())
	assert.Equal(t, "HTTP/1.1", r.Version())

	host, ok := r.Header("Host")
	require.True(t, ok)
	assert.Equal(t, "example.com", host)

	foo, ok := r.Header("X-Foo")
	require.True(t, ok)
	assert.Equal(t, "bar", foo)

	assert.Empty(t, r.Body())
}

func TestReadWithBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	require.NoError(t, r.Read(conn))

	assert.Equal(t, []byte("hello"), r.Body())
}

func TestQueryParsing(t *testing.T) {
	raw := "GET /a?x=1&y=2 HTTP/1.1\r\n\r\n"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	require.NoError(t, r.Read(conn))

	assert.Equal(t, "/a", r.Path())

	x, ok := r.Param("x")
	require.True(t, ok)
	assert.Equal(t, "1", x)

	y, ok := r.Param("y")
	require.True(t, ok)
	assert.Equal(t, "2", y)

	assert.Equal(t, []request.Pair{{Key: "x", Value: "1"}, {Key: "y", Value: "2"}}, r.Params())
}

func TestQueryMissingValueFails(t *testing.T) {
	raw := "GET /a?x= HTTP/1.1\r\n\r\n"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	err := r.Read(conn)
	assert.ErrorIs(t, err, request.ErrMalformedTitle)
}

func TestParamLookupDoesNotSearchHeaders(t *testing.T) {
	raw := "GET /a?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	require.NoError(t, r.Read(conn))

	// "Host" is a header, not a parameter: Param must not find it.
	_, ok := r.Param("Host")
	assert.False(t, ok)

	_, ok = r.Header("x")
	assert.False(t, ok)
}

func TestMalformedHeaderMissingColon(t *testing.T) {
	raw := "GET /a HTTP/1.1\r\nBrokenHeader\r\n\r\n"
	conn := pipeWrite(t, raw)
	defer conn.Close()

	r := request.New()
	err := r.Read(conn)
	assert.ErrorIs(t, err, request.ErrMalformedHeader)
}

func TestBufferGrowsAcrossSegments(t *testing.T) {
	client, server := net.Pipe()

	big := make([]byte, 0, 20000)
	big = append(big, []byte("GET /a HTTP/1.1\r\nX-Pad: ")...)

	for len(big) < 9000 {
		big = append(big, 'a')
	}

	big = append(big, []byte("\r\n\r\n")...)

	go func() {
		// Split into several small writes to exercise the grow loop
		// and the header-terminator search spanning reads.
		chunk := 37
		for i := 0; i < len(big); i += chunk {
			end := i + chunk

			if end > len(big) {
				end = len(big)
			}

			_, _ = client.Write(big[i:end])
			time.Sleep(time.Millisecond)
		}
		client.Close()
	}()

	r := request.New()
	require.NoError(t, r.Read(server))
	assert.Equal(t, "GET", r.Method())

	v, ok := r.Header("X-Pad")
	require.True(t, ok)
	assert.Greater(t, len(v), 8000)
}

func TestReusedRequestClearsPreviousState(t *testing.T) {
	r := request.New()

	conn1 := pipeWrite(t, "GET /a?x=1 HTTP/1.1\r\nH1: v1\r\n\r\n")
	require.NoError(t, r.Read(conn1))
	conn1.Close()

	conn2 := pipeWrite(t, "POST /b HTTP/1.1\r\nH2: v2\r\n\r\n")
	require.NoError(t, r.Read(conn2))
	conn2.Close()

	_, ok := r.Header("H1")
	assert.False(t, ok)
	_, ok = r.Param("x")
	assert.False(t, ok)

	h2, ok := r.Header("H2")
	require.True(t, ok)
	assert.Equal(t, "v2", h2)
	assert.Equal(t, "/b", r.Path())
}

func TestEmptyReadFails(t *testing.T) {
	client, server := net.Pipe()
	client.Close()

	r := request.New()
	err := r.Read(server)
	assert.ErrorIs(t, err, request.ErrEmptyRead)
}
