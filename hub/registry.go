package hub

import (
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/icexin/minicraft-server/proto"
)

// Conn is a live push-mode connection. Send must not block: it either queues
// msg for delivery or fails.
type Conn interface {
	Send(msg []byte) error
	Close() error
	RemoteAddr() string
}

type Broadcaster interface {
	Broadcast(ev interface{}, exclude Conn)
}

// NopBroadcaster is used by polling deployments, where peers pick up changes
// on their next poll.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(interface{}, Conn) {}

type Session struct {
	Conn   Conn
	Player proto.Player
}

// Registry binds each joined connection to the player it announced. At most
// one connection holds a given player id; a newer join takes it over.
type Registry struct {
	mutex    sync.RWMutex
	sessions map[Conn]*Session
	byPlayer map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[Conn]*Session),
		byPlayer: make(map[string]Conn),
	}
}

// Register associates c with p. It returns the other connection that held
// p.ID, already unbound, and the player c was bound to before, if any.
func (r *Registry) Register(c Conn, p proto.Player) (evicted Conn, previous *proto.Player) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if old, ok := r.byPlayer[p.ID]; ok && old != c {
		delete(r.sessions, old)
		evicted = old
	}
	sess, ok := r.sessions[c]
	if ok {
		prev := sess.Player
		previous = &prev
		if prev.ID != p.ID {
			delete(r.byPlayer, prev.ID)
		}
		sess.Player = p
	} else {
		r.sessions[c] = &Session{
			Conn:   c,
			Player: p,
		}
	}
	r.byPlayer[p.ID] = c
	return evicted, previous
}

func (r *Registry) Unregister(c Conn) (proto.Player, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	sess, ok := r.sessions[c]
	if !ok {
		return proto.Player{}, false
	}
	delete(r.sessions, c)
	if r.byPlayer[sess.Player.ID] == c {
		delete(r.byPlayer, sess.Player.ID)
	}
	return sess.Player, true
}

func (r *Registry) Lookup(c Conn) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	sess, ok := r.sessions[c]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// Update replaces the player state of c's session through f.
func (r *Registry) Update(c Conn, f func(proto.Player) proto.Player) (proto.Player, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	sess, ok := r.sessions[c]
	if !ok {
		return proto.Player{}, false
	}
	sess.Player = f(sess.Player)
	return sess.Player, true
}

func (r *Registry) Snapshot(exclude Conn) []proto.Player {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	players := make([]proto.Player, 0, len(r.sessions))
	for c, sess := range r.sessions {
		if c == exclude {
			continue
		}
		players = append(players, sess.Player)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})
	return players
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

func (r *Registry) rangeSession(f func(c Conn, sess Session)) {
	r.mutex.RLock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, *sess)
	}
	r.mutex.RUnlock()
	for _, sess := range sessions {
		f(sess.Conn, sess)
	}
}

// Broadcast encodes ev once and queues it on every session but exclude.
// Connections that cannot take the message are skipped.
func (r *Registry) Broadcast(ev interface{}, exclude Conn) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("encoding broadcast %T: %v", ev, err)
		return
	}
	r.rangeSession(func(c Conn, sess Session) {
		if c == exclude {
			return
		}
		if err := c.Send(msg); err != nil {
			log.Printf("skipping %s(%s): %v", c.RemoteAddr(), sess.Player.ID, err)
		}
	})
}

// CloseAll closes every registered connection. Used on shutdown.
func (r *Registry) CloseAll() {
	r.rangeSession(func(c Conn, _ Session) {
		c.Close()
	})
}
