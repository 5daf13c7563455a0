package live

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/go-playground/assert/v2"
)

func newSseFrameReaderFromString(raw string) *sseFrameReader {
	r := strings.NewReader(raw)
	return &sseFrameReader{
		body:   io.NopCloser(r),
		reader: bufio.NewReader(r),
	}
}

func TestSseFrameReader(t *testing.T) {
	raw := ": ping ############\n\n" +
		"event: message\n" +
		"data: {\"id\": 1}\n" +
		"\n" +
		"data: line1\n" +
		"data: line2\n" +
		"\n"
	reader := newSseFrameReaderFromString(raw)

	// heartbeats produce no frame; event/id/retry fields are skipped
	frame, err := reader.Read()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(frame), `{"id": 1}`)

	// multi-line data joins with newlines
	frame, err = reader.Read()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(frame), "line1\nline2")

	_, err = reader.Read()
	assert.NotEqual(t, err, nil)
}

func TestSseFrameReaderCrLf(t *testing.T) {
	raw := "data: {\"id\": 2}\r\n\r\n"
	reader := newSseFrameReaderFromString(raw)

	frame, err := reader.Read()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(frame), `{"id": 2}`)
}

func TestSseFrameReaderNoSpaceAfterColon(t *testing.T) {
	raw := "data:{\"id\": 3}\n\n"
	reader := newSseFrameReaderFromString(raw)

	frame, err := reader.Read()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(frame), `{"id": 3}`)
}

func TestSseTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Header.Get("Accept"), "text/event-stream")
		assert.Equal(t, r.URL.Query().Get("access_token"), "tok1")

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, ": ping\n\n")
		io.WriteString(w, "event: message\ndata: {\"id\": 1, \"type\": \"OFFERED\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	transport := NewSseTransport(server.URL+"?access_token=tok1", DefaultTransportSettings())
	frames, err := transport.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer frames.Close()

	frame, err := frames.Read()
	assert.Equal(t, err, nil)
	event, err := ParsePushEvent(frame)
	assert.Equal(t, err, nil)
	assert.Equal(t, event.Id, int64(1))
	assert.Equal(t, event.Type, NotificationTypeOffered)
}

func TestSseTransportNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	transport := NewSseTransport(server.URL, DefaultTransportSettings())
	_, err := transport.Connect(context.Background())
	assert.NotEqual(t, err, nil)
}

func TestWsTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte(`{"id": 2, "type": "DONE"}`))
	}))
	defer server.Close()

	// the http url is rewritten to the ws scheme
	transport := NewWsTransport(server.URL, DefaultTransportSettings())
	frames, err := transport.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer frames.Close()

	frame, err := frames.Read()
	assert.Equal(t, err, nil)
	event, err := ParsePushEvent(frame)
	assert.Equal(t, err, nil)
	assert.Equal(t, event.Id, int64(2))
}
