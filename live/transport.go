package live

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// a Transport opens one long-lived connection to the push endpoint and
// exposes it as a sequence of raw frame payloads. a successful Connect is the
// transport-level "open" signal; a Read error is the transport-level "error"
// signal. there is no operation-level timeout on Read: liveness is assessed
// only through open/error signaling, with reconnect backoff as the sole
// recovery mechanism.
type Transport interface {
	Connect(ctx context.Context) (FrameReader, error)
}

type FrameReader interface {
	// blocks until the next frame payload or a transport error
	Read() ([]byte, error)
	Close() error
}

type TransportGenerator func(url string, settings *TransportSettings) Transport

type TransportSettings struct {
	ConnectTimeout      time.Duration
	TlsHandshakeTimeout time.Duration
	WsHandshakeTimeout  time.Duration
}

func DefaultTransportSettings() *TransportSettings {
	return &TransportSettings{
		ConnectTimeout:      5 * time.Second,
		TlsHandshakeTimeout: 5 * time.Second,
		WsHandshakeTimeout:  5 * time.Second,
	}
}

// event-stream transport (default)
//
// the endpoint delivers `text/event-stream` framing: frames are blocks of
// `field: value` lines terminated by a blank line, with the JSON payload in
// one or more `data:` lines. `: ping` comment lines are server heartbeats and
// produce no frame.

type SseTransport struct {
	url      string
	settings *TransportSettings
}

func NewSseTransport(url string, settings *TransportSettings) Transport {
	return &SseTransport{
		url:      url,
		settings: settings,
	}
}

func (self *SseTransport) Connect(ctx context.Context) (FrameReader, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", self.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// no overall client timeout. the connection stays open indefinitely.
	dialer := &net.Dialer{
		Timeout: self.settings.ConnectTimeout,
	}
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: self.settings.TlsHandshakeTimeout,
		},
	}

	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode != http.StatusOK {
		r.Body.Close()
		return nil, fmt.Errorf("stream connect: %s", r.Status)
	}

	return &sseFrameReader{
		body:   r.Body,
		reader: bufio.NewReader(r.Body),
	}, nil
}

type sseFrameReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func (self *sseFrameReader) Read() ([]byte, error) {
	var data []string
	for {
		line, err := self.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			// end of frame
			if 0 < len(data) {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// heartbeat comment
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field == "data" {
			data = append(data, value)
		}
		// event, id and retry fields are not interpreted
	}
}

func (self *sseFrameReader) Close() error {
	return self.body.Close()
}

// websocket transport
//
// the gateway also exposes the event feed over a websocket that carries one
// JSON payload per text message.

type WsTransport struct {
	url      string
	settings *TransportSettings
}

func NewWsTransport(url string, settings *TransportSettings) Transport {
	return &WsTransport{
		url:      url,
		settings: settings,
	}
}

func (self *WsTransport) Connect(ctx context.Context) (FrameReader, error) {
	wsUrl := self.url
	if strings.HasPrefix(wsUrl, "http://") {
		wsUrl = "ws://" + strings.TrimPrefix(wsUrl, "http://")
	} else if strings.HasPrefix(wsUrl, "https://") {
		wsUrl = "wss://" + strings.TrimPrefix(wsUrl, "https://")
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, wsUrl, nil)
	if err != nil {
		return nil, err
	}

	return &wsFrameReader{
		ws: ws,
	}, nil
}

type wsFrameReader struct {
	ws *websocket.Conn
}

func (self *wsFrameReader) Read() ([]byte, error) {
	for {
		messageType, message, err := self.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return message, nil
		default:
			// control frames are handled by the library
			continue
		}
	}
}

func (self *wsFrameReader) Close() error {
	return self.ws.Close()
}
