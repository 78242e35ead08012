package proto

import "encoding/json"

// push events sent by the server

const (
	EventPlayersList = "players_list"
	EventPlayerJoin  = "player_join"
	EventPlayerMove  = "player_move"
	EventPlayerLeave = "player_leave"
	EventSetBlock    = "set_block"
	EventRemoveBlock = "block_remove"
	EventChunk       = "chunk"
	EventError       = "error"
)

type PlayersListEvent struct {
	Type    string   `json:"type"`
	Players []Player `json:"players"`
}

type PlayerJoinEvent struct {
	Type   string `json:"type"`
	Player Player `json:"player"`
}

type PlayerMoveEvent struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Yaw  float64 `json:"yaw"`
}

type PlayerLeaveEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type SetBlockEvent struct {
	Type string `json:"type"`
	Block
}

type RemoveBlockEvent struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
}

type ChunkEvent struct {
	Type string `json:"type"`
	ChunkReply
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// pull replies

type Ack struct {
	OK int `json:"ok"`
}

type ErrorReply struct {
	OK    int    `json:"ok"`
	Error string `json:"error"`
}

type BlocksReply struct {
	OK     int     `json:"ok"`
	Blocks []Block `json:"blocks"`
}

type PlayersReply struct {
	OK      int      `json:"ok"`
	Players []Player `json:"players"`
}

type ChunkReply struct {
	OK      int     `json:"ok"`
	P       int     `json:"p"`
	Q       int     `json:"q"`
	Version string  `json:"version"`
	Blocks  []Block `json:"blocks"`
}

// yamux transport notification carrying one encoded push event.
type Notification struct {
	Event json.RawMessage
}

type NotifyResponse struct {
}
