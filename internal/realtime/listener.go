package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"qcdash/internal/core"
)

const (
	maxRetryDelay = 30 * time.Second
	writeTimeout  = 5 * time.Second
)

// Engine.io v4 packet types, the first byte of every text frame.
const (
	packetOpen    = '0'
	packetClose   = '1'
	packetPing    = '2'
	packetPong    = '3'
	packetMessage = '4'
)

// Socket.io packet types, the byte after an engine.io message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var errServerClosed = errors.New("upstream closed the session")

// Listener subscribes to the upstream push channel and calls OnUpdate for
// every inspection:update event.
//
// Against a socket.io v4 server the URL must point at the websocket
// transport, e.g. wss://host/socket.io/?EIO=4&transport=websocket. The
// listener joins the namespace after the open packet and answers pings.
// Any other websocket server may push plain JSON frames naming the event.
type Listener struct {
	url       string
	namespace string
	onUpdate  func(context.Context) error
	dialer    *websocket.Dialer
	logger    *slog.Logger
	minDelay  time.Duration
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithNamespace joins a socket.io namespace other than "/".
func WithNamespace(ns string) ListenerOption {
	return func(l *Listener) {
		if ns != "" && ns != "/" {
			l.namespace = "/" + strings.Trim(ns, "/")
		}
	}
}

// NewListener returns a listener for the websocket at url.
func NewListener(url string, onUpdate func(context.Context) error, logger *slog.Logger, opts ...ListenerOption) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		url:      url,
		onUpdate: onUpdate,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:   logger,
		minDelay: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run keeps the subscription alive until ctx is done, reconnecting with
// exponential backoff capped at 30s.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		wait := retryDelay(attempt, l.minDelay)
		l.logger.WarnContext(ctx, "Upstream push channel disconnected, retrying",
			"url", l.url,
			"error", err,
			"backoff", wait)
		attempt++

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session is the per-connection protocol state.
type session struct {
	conn *websocket.Conn
	// liveness is pingInterval+pingTimeout from the open packet; zero for
	// plain websocket upstreams.
	liveness time.Duration
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func (l *Listener) listen(ctx context.Context) (bool, error) {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Refreshes run off the read loop so pings are answered while a fetch
	// is in flight. Events arriving meanwhile collapse into one pending run.
	pending := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pending {
			if err := l.onUpdate(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.logger.WarnContext(ctx, "Push-triggered refresh failed", "error", err)
			}
		}
	}()
	defer func() {
		close(pending)
		<-done
	}()

	l.logger.InfoContext(ctx, "Subscribed to upstream push channel", "url", l.url)
	s := &session{conn: conn}
	for {
		if s.liveness > 0 {
			conn.SetReadDeadline(time.Now().Add(s.liveness))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, err
		}
		update, err := l.handleFrame(ctx, s, data)
		if err != nil {
			return true, err
		}
		if update {
			select {
			case pending <- struct{}{}:
			default:
			}
		}
	}
}

// handleFrame answers protocol packets and reports whether data announces
// an inspection change.
func (l *Listener) handleFrame(ctx context.Context, s *session, data []byte) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	switch data[0] {
	case packetOpen:
		var open openPacket
		if err := json.Unmarshal(data[1:], &open); err != nil {
			return false, fmt.Errorf("decode open packet: %w", err)
		}
		if open.PingInterval > 0 || open.PingTimeout > 0 {
			s.liveness = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
		}
		l.logger.DebugContext(ctx, "Engine.io session opened", "sid", open.SID, "namespace", l.nsOrRoot())
		return false, l.write(s, l.connectPacket())
	case packetPing:
		// "2probe" is answered with "3probe".
		return false, l.write(s, string(packetPong)+string(data[1:]))
	case packetClose:
		return false, errServerClosed
	case packetMessage:
		return l.handleMessage(ctx, data[1:])
	}
	return IsUpdateFrame(data), nil
}

func (l *Listener) handleMessage(ctx context.Context, msg []byte) (bool, error) {
	if len(msg) == 0 {
		return false, nil
	}
	kind, body := msg[0], msg[1:]
	if !l.inNamespace(body) {
		return false, nil
	}
	switch kind {
	case sioConnect:
		l.logger.InfoContext(ctx, "Joined socket.io namespace", "namespace", l.nsOrRoot())
	case sioConnectError:
		return false, fmt.Errorf("namespace %s refused connection: %s", l.nsOrRoot(), payload(body))
	case sioDisconnect:
		return false, errServerClosed
	case sioEvent:
		return eventName(body) == core.EventInspectionUpdate, nil
	}
	return false, nil
}

func (l *Listener) connectPacket() string {
	if l.namespace == "" {
		return "40"
	}
	return "40" + l.namespace + ","
}

func (l *Listener) nsOrRoot() string {
	if l.namespace == "" {
		return "/"
	}
	return l.namespace
}

// inNamespace reports whether a socket.io packet body belongs to the joined
// namespace. Bodies outside "/" carry a "/ns," prefix.
func (l *Listener) inNamespace(body []byte) bool {
	if l.namespace == "" {
		return len(body) == 0 || body[0] != '/'
	}
	return bytes.HasPrefix(body, []byte(l.namespace+","))
}

func (l *Listener) write(s *session, packet string) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(packet))
}

// payload strips a namespace prefix from a socket.io packet body.
func payload(body []byte) []byte {
	if len(body) > 0 && body[0] == '/' {
		if i := bytes.IndexByte(body, ','); i >= 0 {
			return body[i+1:]
		}
	}
	return body
}

// eventName returns the name of a socket.io event packet body such as
// `/ns,12["inspection:update",{...}]`, or "" if it cannot be decoded.
func eventName(body []byte) string {
	i := bytes.IndexByte(body, '[')
	if i < 0 {
		return ""
	}
	var args []json.RawMessage
	if err := json.Unmarshal(body[i:], &args); err != nil || len(args) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return ""
	}
	return name
}

// IsUpdateFrame reports whether a push frame announces an inspection change.
// Socket.io event frames match on the event name, anything else on content.
func IsUpdateFrame(data []byte) bool {
	if len(data) >= 2 && data[0] == packetMessage && data[1] == sioEvent {
		return eventName(data[2:]) == core.EventInspectionUpdate
	}
	return bytes.Contains(data, []byte(core.EventInspectionUpdate))
}

func retryDelay(attempt int, base time.Duration) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	if attempt < 0 {
		attempt = 0
	}
	d := base << attempt
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
