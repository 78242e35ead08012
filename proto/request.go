package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Action tags understood by the dispatcher.
const (
	ActionJoin         = "join"
	ActionMove         = "move"
	ActionSetBlock     = "set_block"
	ActionRemoveBlock  = "block_remove"
	ActionGetChunk     = "get_chunk"
	ActionGetBlocks    = "get_blocks"
	ActionGetPlayers   = "get_players"
	ActionUpdatePlayer = "update_player"
	ActionLeavePlayer  = "leave_player"
)

// Number is a JSON number that also accepts numeric strings, since polling
// clients may send coordinates as form values.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", b)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("not a finite number: %q", b)
	}
	*n = Number(f)
	return nil
}

func (n *Number) Int() int {
	return int(*n)
}

func (n *Number) Float() float64 {
	return float64(*n)
}

// Envelope is the tag every push-mode message carries.
type Envelope struct {
	Type string `json:"type"`
}

type JoinRequest struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Color *string `json:"color"`
	X     *Number `json:"x"`
	Y     *Number `json:"y"`
	Z     *Number `json:"z"`
	Yaw   *Number `json:"yaw"`
}

type MoveRequest struct {
	X   *Number `json:"x"`
	Y   *Number `json:"y"`
	Z   *Number `json:"z"`
	Yaw *Number `json:"yaw"`
}

type SetBlockRequest struct {
	X  *Number `json:"x"`
	Y  *Number `json:"y"`
	Z  *Number `json:"z"`
	ID *Number `json:"id"`
}

func (r *SetBlockRequest) Validate() error {
	if r.X == nil || r.Y == nil || r.Z == nil || r.ID == nil {
		return ErrMissingParams
	}
	return nil
}

func (r *SetBlockRequest) Block() Block {
	return Block{X: r.X.Int(), Y: r.Y.Int(), Z: r.Z.Int(), ID: r.ID.Int()}
}

type RemoveBlockRequest struct {
	X *Number `json:"x"`
	Y *Number `json:"y"`
	Z *Number `json:"z"`
}

func (r *RemoveBlockRequest) Validate() error {
	if r.X == nil || r.Y == nil || r.Z == nil {
		return ErrMissingParams
	}
	return nil
}

func (r *RemoveBlockRequest) Pos() Vec3 {
	return Vec3{r.X.Int(), r.Y.Int(), r.Z.Int()}
}

type GetChunkRequest struct {
	P       int    `json:"p"`
	Q       int    `json:"q"`
	Version string `json:"version"`
}

type GetPlayersRequest struct {
	MyID string `json:"myid"`
}

type UpdatePlayerRequest struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Color *string `json:"color"`
	X     *Number `json:"x"`
	Y     *Number `json:"y"`
	Z     *Number `json:"z"`
	Yaw   *Number `json:"yaw"`
}

type LeavePlayerRequest struct {
	ID string `json:"id"`
}

// Decode unmarshals payload into v, reporting failures as ErrMalformedMessage.
// An empty payload decodes to the zero request.
func Decode(payload []byte, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &Error{Kind: ErrMalformedMessage, Msg: "malformed request", Err: err}
	}
	return nil
}

func numberOr(n *Number, def float64) float64 {
	if n == nil {
		return def
	}
	return n.Float()
}

// NewNumber returns a pointer to f as a Number, for building requests.
func NewNumber(f float64) *Number {
	n := Number(f)
	return &n
}
