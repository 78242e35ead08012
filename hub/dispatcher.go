package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/icexin/minicraft-server/proto"
	"github.com/icexin/minicraft-server/world"
)

type Mode int

const (
	// Push serves persistent connections and fans every change out to peers.
	Push Mode = iota
	// Pull serves stateless polls; peers observe changes on their next poll.
	Pull
)

func (m Mode) String() string {
	switch m {
	case Push:
		return "push"
	case Pull:
		return "pull"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "push":
		return Push, nil
	case "pull":
		return Pull, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Dispatcher applies inbound events to the world and roster and propagates
// the result. A nil origin marks a stateless poll.
type Dispatcher struct {
	mode     Mode
	world    *world.World
	roster   *world.Roster
	sessions *Registry
	bcast    Broadcaster

	// membership serializes joins, moves and disconnects so the roster and
	// its announcements follow the registry.
	membership sync.Mutex
}

func NewDispatcher(mode Mode, w *world.World, r *world.Roster, sessions *Registry) *Dispatcher {
	d := &Dispatcher{
		mode:     mode,
		world:    w,
		roster:   r,
		sessions: sessions,
		bcast:    NopBroadcaster{},
	}
	if mode == Push {
		if d.sessions == nil {
			d.sessions = NewRegistry()
		}
		d.bcast = d.sessions
	}
	return d
}

func (d *Dispatcher) Mode() Mode {
	return d.mode
}

func (d *Dispatcher) Sessions() *Registry {
	return d.sessions
}

type handlerFunc func(d *Dispatcher, origin Conn, payload []byte) (interface{}, error)

func decoded[T any](f func(d *Dispatcher, origin Conn, req *T) (interface{}, error)) handlerFunc {
	return func(d *Dispatcher, origin Conn, payload []byte) (interface{}, error) {
		req := new(T)
		if err := proto.Decode(payload, req); err != nil {
			return nil, err
		}
		return f(d, origin, req)
	}
}

func ack(err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return &proto.Ack{OK: 1}, nil
}

var pushRoutes = map[string]handlerFunc{
	proto.ActionJoin: decoded(func(d *Dispatcher, origin Conn, req *proto.JoinRequest) (interface{}, error) {
		return nil, d.Join(origin, req)
	}),
	proto.ActionMove: decoded(func(d *Dispatcher, origin Conn, req *proto.MoveRequest) (interface{}, error) {
		return nil, d.Move(origin, req)
	}),
	proto.ActionSetBlock: decoded(func(d *Dispatcher, origin Conn, req *proto.SetBlockRequest) (interface{}, error) {
		return nil, d.SetBlock(origin, req)
	}),
	proto.ActionRemoveBlock: decoded(func(d *Dispatcher, origin Conn, req *proto.RemoveBlockRequest) (interface{}, error) {
		return nil, d.RemoveBlock(origin, req)
	}),
	proto.ActionGetChunk: decoded(func(d *Dispatcher, origin Conn, req *proto.GetChunkRequest) (interface{}, error) {
		reply := d.GetChunk(req)
		return nil, d.send(origin, &proto.ChunkEvent{Type: proto.EventChunk, ChunkReply: *reply})
	}),
}

var pullRoutes = map[string]handlerFunc{
	proto.ActionGetBlocks: func(d *Dispatcher, _ Conn, _ []byte) (interface{}, error) {
		return d.GetBlocks(), nil
	},
	proto.ActionGetPlayers: decoded(func(d *Dispatcher, _ Conn, req *proto.GetPlayersRequest) (interface{}, error) {
		return d.GetPlayers(req), nil
	}),
	proto.ActionSetBlock: decoded(func(d *Dispatcher, origin Conn, req *proto.SetBlockRequest) (interface{}, error) {
		return ack(d.SetBlock(origin, req))
	}),
	proto.ActionRemoveBlock: decoded(func(d *Dispatcher, origin Conn, req *proto.RemoveBlockRequest) (interface{}, error) {
		return ack(d.RemoveBlock(origin, req))
	}),
	proto.ActionUpdatePlayer: decoded(func(d *Dispatcher, _ Conn, req *proto.UpdatePlayerRequest) (interface{}, error) {
		return ack(d.UpdatePlayer(req))
	}),
	proto.ActionLeavePlayer: decoded(func(d *Dispatcher, _ Conn, req *proto.LeavePlayerRequest) (interface{}, error) {
		return ack(d.LeavePlayer(req))
	}),
	proto.ActionGetChunk: decoded(func(d *Dispatcher, _ Conn, req *proto.GetChunkRequest) (interface{}, error) {
		return d.GetChunk(req), nil
	}),
}

// Handle routes one event by its action tag. The reply is only meaningful in
// pull mode; push replies travel through origin.Send.
func (d *Dispatcher) Handle(origin Conn, action string, payload []byte) (interface{}, error) {
	if action == "" {
		return nil, proto.ErrNoAction
	}
	routes := pushRoutes
	if d.mode == Pull {
		routes = pullRoutes
	}
	h, ok := routes[action]
	if !ok {
		return nil, proto.ErrBadAction
	}
	return h(d, origin, payload)
}

// HandleMessage is the push-mode entry point for one raw message.
func (d *Dispatcher) HandleMessage(origin Conn, raw []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("dropping malformed message from %s: %v", origin.RemoteAddr(), err)
		return
	}
	_, err := d.Handle(origin, env.Type, raw)
	switch {
	case err == nil:
	case errors.Is(err, proto.ErrUnknownAction):
	case errors.Is(err, proto.ErrMalformedMessage):
		log.Printf("dropping %s from %s: %v", env.Type, origin.RemoteAddr(), err)
	default:
		d.reportError(origin, err)
	}
}

func (d *Dispatcher) reportError(origin Conn, err error) {
	if err := d.send(origin, &proto.ErrorEvent{Type: proto.EventError, Error: proto.Message(err)}); err != nil {
		log.Printf("reporting error to %s: %v", origin.RemoteAddr(), err)
	}
}

func (d *Dispatcher) Join(origin Conn, req *proto.JoinRequest) error {
	if d.mode != Push {
		return proto.ErrBadAction
	}
	p := req.Player()
	if p.ID == "" {
		return proto.ErrMissingID
	}
	d.membership.Lock()
	defer d.membership.Unlock()
	if err := d.roster.Upsert(p); err != nil {
		return err
	}
	evicted, previous := d.sessions.Register(origin, p)
	if previous != nil && previous.ID != p.ID {
		d.dropPlayer(previous.ID, origin)
	}
	if evicted != nil {
		log.Printf("%s took over player %s from %s", origin.RemoteAddr(), p.ID, evicted.RemoteAddr())
		d.send(evicted, &proto.ErrorEvent{Type: proto.EventError, Error: "another connection has taken over your session"})
		evicted.Close()
	}
	log.Printf("[+] %s(%s) joined. Online: %d", p.Name, p.ID, d.sessions.Len())

	list := &proto.PlayersListEvent{Type: proto.EventPlayersList, Players: d.sessions.Snapshot(origin)}
	if err := d.send(origin, list); err != nil {
		log.Printf("sending players_list to %s: %v", origin.RemoteAddr(), err)
	}
	d.bcast.Broadcast(&proto.PlayerJoinEvent{Type: proto.EventPlayerJoin, Player: p}, origin)
	return nil
}

func (d *Dispatcher) Move(origin Conn, req *proto.MoveRequest) error {
	if d.sessions == nil {
		return nil
	}
	d.membership.Lock()
	defer d.membership.Unlock()
	p, ok := d.sessions.Update(origin, req.Apply)
	if !ok {
		return nil
	}
	if err := d.roster.Upsert(p); err != nil {
		return err
	}
	d.bcast.Broadcast(&proto.PlayerMoveEvent{
		Type: proto.EventPlayerMove,
		ID:   p.ID,
		X:    p.X,
		Y:    p.Y,
		Z:    p.Z,
		Yaw:  p.Yaw,
	}, origin)
	return nil
}

func (d *Dispatcher) SetBlock(origin Conn, req *proto.SetBlockRequest) error {
	if !d.joined(origin) {
		return nil
	}
	if err := req.Validate(); err != nil {
		return err
	}
	b := req.Block()
	if err := d.world.SetBlock(b); err != nil {
		log.Printf("set_block %v: %v", b, err)
		return err
	}
	d.bcast.Broadcast(&proto.SetBlockEvent{Type: proto.EventSetBlock, Block: b}, origin)
	return nil
}

func (d *Dispatcher) RemoveBlock(origin Conn, req *proto.RemoveBlockRequest) error {
	if !d.joined(origin) {
		return nil
	}
	if err := req.Validate(); err != nil {
		return err
	}
	pos := req.Pos()
	if err := d.world.RemoveBlock(pos); err != nil {
		log.Printf("block_remove %v: %v", pos, err)
		return err
	}
	d.bcast.Broadcast(&proto.RemoveBlockEvent{Type: proto.EventRemoveBlock, X: pos.X, Y: pos.Y, Z: pos.Z}, origin)
	return nil
}

func (d *Dispatcher) GetBlocks() *proto.BlocksReply {
	return &proto.BlocksReply{OK: 1, Blocks: d.world.Blocks()}
}

func (d *Dispatcher) GetChunk(req *proto.GetChunkRequest) *proto.ChunkReply {
	version, blocks := d.world.Chunk(req.P, req.Q, req.Version)
	if blocks == nil {
		blocks = []proto.Block{}
	}
	return &proto.ChunkReply{OK: 1, P: req.P, Q: req.Q, Version: version, Blocks: blocks}
}

func (d *Dispatcher) GetPlayers(req *proto.GetPlayersRequest) *proto.PlayersReply {
	return &proto.PlayersReply{OK: 1, Players: d.roster.List(req.MyID)}
}

func (d *Dispatcher) UpdatePlayer(req *proto.UpdatePlayerRequest) error {
	p := req.Player()
	if p.ID == "" {
		return proto.ErrMissingID
	}
	return d.roster.Upsert(p)
}

func (d *Dispatcher) LeavePlayer(req *proto.LeavePlayerRequest) error {
	id := proto.SanitizeID(req.ID)
	if id == "" {
		return nil
	}
	if err := d.roster.Remove(id); err != nil {
		return err
	}
	d.bcast.Broadcast(&proto.PlayerLeaveEvent{Type: proto.EventPlayerLeave, ID: id}, nil)
	return nil
}

// Disconnect tears down origin's session. Only the first call for a joined
// connection announces the leave.
func (d *Dispatcher) Disconnect(origin Conn) {
	if d.sessions == nil {
		return
	}
	d.membership.Lock()
	defer d.membership.Unlock()
	p, ok := d.sessions.Unregister(origin)
	if !ok {
		return
	}
	log.Printf("[-] %s(%s) left. Online: %d", p.Name, p.ID, d.sessions.Len())
	d.dropPlayer(p.ID, origin)
}

func (d *Dispatcher) dropPlayer(id string, origin Conn) {
	if err := d.roster.Remove(id); err != nil {
		log.Printf("removing player %s: %v", id, err)
	}
	d.bcast.Broadcast(&proto.PlayerLeaveEvent{Type: proto.EventPlayerLeave, ID: id}, origin)
}

func (d *Dispatcher) joined(origin Conn) bool {
	if origin == nil {
		return true
	}
	if d.sessions == nil {
		return false
	}
	_, ok := d.sessions.Lookup(origin)
	return ok
}

func (d *Dispatcher) send(c Conn, ev interface{}) error {
	if c == nil {
		return nil
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Send(msg)
}
