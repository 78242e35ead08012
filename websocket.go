package main

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/icexin/minicraft-server/hub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var errConnClosed = errors.New("connection closed")

// wsConn is a browser connection. Inbound frames are handled one at a time
// on the read pump; outbound events are written by the write pump.
type wsConn struct {
	conn       *websocket.Conn
	addr       string
	dispatcher *hub.Dispatcher
	limiter    *rate.Limiter

	mutex  sync.Mutex
	closed bool
	send   chan []byte
}

func newWSConn(conn *websocket.Conn, addr string, d *hub.Dispatcher, cfg *Config) *wsConn {
	conn.SetReadLimit(cfg.MaxMessageSize)
	return &wsConn{
		conn:       conn,
		addr:       addr,
		dispatcher: d,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		send:       make(chan []byte, sendQueueSize),
	}
}

func (c *wsConn) Send(msg []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errQueueFull
	}
}

// Close stops the write pump after it flushes what is queued.
func (c *wsConn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

func (c *wsConn) readPump() {
	defer func() {
		c.dispatcher.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("read from %s: %v", c.addr, err)
			}
			return
		}
		if !c.limiter.Allow() {
			log.Printf("rate limit exceeded for %s, dropping message", c.addr)
			continue
		}
		c.dispatcher.HandleMessage(c, raw)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("write to %s: %v", c.addr, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	log.Printf("websocket connection from %s", r.RemoteAddr)
	c := newWSConn(conn, r.RemoteAddr, s.dispatcher, s.cfg)
	go c.writePump()
	go c.readPump()
}

// checkOrigin admits requests whose Origin is in allowed. "*" admits any
// origin, including requests that carry none.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]bool)
	allowAll := false
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			origins[n] = true
		} else {
			log.Printf("ignoring invalid origin %q", o)
		}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		n, ok := normalizeOrigin(r.Header.Get("Origin"))
		if ok && origins[n] {
			return true
		}
		log.Printf("blocked websocket from origin %q", r.Header.Get("Origin"))
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
