package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"localchat/internal/session"
	"localchat/pkg/types"
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
}

var extensionSchemes = []string{"chrome-extension", "moz-extension", "safari-web-extension"}

// checkOrigin admits clients without an Origin header, loopback pages,
// browser extensions and the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range wsAllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if slices.Contains(extensionSchemes, scheme) {
		return true
	}
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// wsChannel adapts a WebSocket connection to session.Channel. gorilla
// connections allow one concurrent writer, so every write takes mu.
type wsChannel struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *wsChannel) Send(ev types.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(ev)
}

func (c *wsChannel) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	c.mu.Unlock()
	return c.conn.Close()
}

// serveWS godoc
// @Summary      Consumer session channel
// @Description  WebSocket. Send {"type":"start_stream","payload":{...}} or {"type":"stop_stream"}; receive chunk, error and done events. A second connection with the same consumer id replaces the first.
// @Tags         sessions
// @Param        consumer  query  string  false  "Consumer id (generated when empty)"
// @Router       /ws [get]
func (a *api) serveWS(w http.ResponseWriter, r *http.Request) {
	if a.Registry == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "session registry not configured")
		return
	}
	consumer := strings.TrimSpace(r.URL.Query().Get("consumer"))
	if consumer == "" {
		consumer = uuid.NewString()
	}
	log := requestLogger(r).With().Str("consumer", consumer).Logger()

	up := newUpgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(wsMaxMessageBytes)
	ch := &wsChannel{conn: conn}
	sess, err := a.Registry.Connect(consumer, ch)
	if err != nil {
		log.Warn().Err(err).Msg("session rejected")
		_ = ch.Close()
		return
	}
	defer a.Registry.Disconnect(sess)
	log.Debug().Msg("session connected")

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(2 * wsPingInterval)) }
	extend()
	conn.SetPongHandler(func(string) error { extend(); return nil })
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := ch.ping(); err != nil {
					return
				}
			}
		}
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Msg("session read failed")
			}
			return
		}
		extend()
		var cmd types.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = ch.Send(types.Failure("invalid command: " + err.Error()))
			continue
		}
		if err := a.Registry.Handle(ctx, sess, cmd); err != nil {
			if errors.Is(err, session.ErrSessionClosed) || errors.Is(err, session.ErrRegistryClosed) {
				return
			}
			_ = ch.Send(types.Failure(err.Error()))
		}
	}
}
