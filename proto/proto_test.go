package proto

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func strptr(s string) *string {
	return &s
}

func TestVec3_Chunkid(t *testing.T) {
	tests := map[string]struct {
		v   Vec3
		exp Vec3
	}{
		"origin":         {v: Vec3{0, 0, 0}, exp: Vec3{0, 0, 0}},
		"last in chunk":  {v: Vec3{31, 7, 31}, exp: Vec3{0, 0, 0}},
		"next chunk":     {v: Vec3{32, 7, 64}, exp: Vec3{1, 0, 2}},
		"negative floor": {v: Vec3{-1, 3, -33}, exp: Vec3{-1, 0, -2}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "chunk", tt.v.Chunkid(), tt.exp)
		})
	}
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]struct {
		in  string
		exp string
	}{
		"plain":        {in: "player_1-a", exp: "player_1-a"},
		"strips":       {in: "ab c!@#d<e>", exp: "abcde"},
		"all stripped": {in: "!!!", exp: ""},
		"truncates":    {in: strings.Repeat("x", 40), exp: strings.Repeat("x", 32)},
		"unicode":      {in: "héllo", exp: "hllo"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "id", SanitizeID(tt.in), tt.exp)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]struct {
		in  *string
		exp string
	}{
		"absent":    {in: nil, exp: DefaultName},
		"plain":     {in: strptr("Steve"), exp: "Steve"},
		"escaped":   {in: strptr("<b>"), exp: "&lt;b&gt;"},
		"truncates": {in: strptr(strings.Repeat("a", 25)), exp: strings.Repeat("a", 20)},
		"empty":     {in: strptr(""), exp: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "name", SanitizeName(tt.in), tt.exp)
		})
	}
}

func TestSanitizeColor(t *testing.T) {
	tests := map[string]struct {
		in  *string
		exp string
	}{
		"absent":    {in: nil, exp: DefaultColor},
		"hex":       {in: strptr("#A0b1C2"), exp: "#A0b1C2"},
		"strips":    {in: strptr("#GG12;x"), exp: "#12"},
		"truncates": {in: strptr("#1234567890"), exp: "#123456"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "color", SanitizeColor(tt.in), tt.exp)
		})
	}
}

func TestJoinRequest_Player(t *testing.T) {
	var req JoinRequest
	if err := Decode([]byte(`{"type":"join","id":"a b","x":"2","z":3}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := req.Player()
	testutil.AssertEqual(t, "id", p.ID, "ab")
	testutil.AssertEqual(t, "name", p.Name, DefaultName)
	testutil.AssertEqual(t, "color", p.Color, DefaultColor)
	testutil.AssertEqual(t, "x", p.X, 2.0)
	testutil.AssertEqual(t, "y", p.Y, float64(DefaultSpawnY))
	testutil.AssertEqual(t, "z", p.Z, 3.0)
	testutil.AssertEqual(t, "yaw", p.Yaw, 0.0)
}

func TestUpdatePlayerRequest_Player(t *testing.T) {
	req := UpdatePlayerRequest{ID: "p1", Name: strptr("Alex"), Y: NewNumber(9)}
	p := req.Player()
	testutil.AssertEqual(t, "name", p.Name, "Alex")
	testutil.AssertEqual(t, "x", p.X, 0.0)
	testutil.AssertEqual(t, "y", p.Y, 9.0)
}

func TestMoveRequest_Apply(t *testing.T) {
	p := Player{ID: "p1", X: 1, Y: 2, Z: 3, Yaw: 0.5}
	req := MoveRequest{X: NewNumber(10), Yaw: NewNumber(1.5)}
	got := req.Apply(p)
	testutil.AssertEqual(t, "moved", got, Player{ID: "p1", X: 10, Y: 2, Z: 3, Yaw: 1.5})
}

func TestDecode(t *testing.T) {
	tests := map[string]struct {
		payload string
		expErr  bool
		expX    float64
		expNil  bool
	}{
		"empty":          {payload: "", expNil: true},
		"number":         {payload: `{"x":4}`, expX: 4},
		"numeric string": {payload: `{"x":"3.5"}`, expX: 3.5},
		"absent field":   {payload: `{"y":1}`, expNil: true},
		"bool":           {payload: `{"x":true}`, expErr: true},
		"bad string":     {payload: `{"x":"four"}`, expErr: true},
		"truncated":      {payload: `{"x":`, expErr: true},
		"nan string":     {payload: `{"x":"NaN"}`, expErr: true},
		"inf string":     {payload: `{"x":"Infinity"}`, expErr: true},
		"negative inf":   {payload: `{"x":"-Inf"}`, expErr: true},
		"overflow":       {payload: `{"x":"1e400"}`, expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var req MoveRequest
			err := Decode([]byte(tt.payload), &req)
			if tt.expErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("expected malformed message, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expNil {
				testutil.AssertEqual(t, "x absent", req.X == nil, true)
				return
			}
			testutil.AssertEqual(t, "x", req.X.Float(), tt.expX)
		})
	}
}

func TestSetBlockRequest_Validate(t *testing.T) {
	tests := map[string]struct {
		payload string
		expErr  bool
		exp     Block
	}{
		"complete":   {payload: `{"x":1,"y":2,"z":-3,"id":7}`, exp: Block{X: 1, Y: 2, Z: -3, ID: 7}},
		"zero id":    {payload: `{"x":1,"y":2,"z":3,"id":0}`, exp: Block{X: 1, Y: 2, Z: 3}},
		"missing id": {payload: `{"x":1,"y":2,"z":3}`, expErr: true},
		"null y":     {payload: `{"x":1,"y":null,"z":3,"id":1}`, expErr: true},
		"fractional": {payload: `{"x":1.9,"y":2,"z":3,"id":4}`, exp: Block{X: 1, Y: 2, Z: 3, ID: 4}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var req SetBlockRequest
			if err := Decode([]byte(tt.payload), &req); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			err := req.Validate()
			if tt.expErr {
				testutil.AssertErrorContains(t, err, "missing params")
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "block", req.Block(), tt.exp)
		})
	}
}

func TestErrors(t *testing.T) {
	testutil.AssertEqual(t, "missing params kind", errors.Is(ErrMissingParams, ErrInvalidInput), true)
	testutil.AssertEqual(t, "no action kind", errors.Is(ErrNoAction, ErrUnknownAction), true)

	perr := PersistenceError(io.ErrClosedPipe)
	testutil.AssertEqual(t, "persistence kind", errors.Is(perr, ErrPersistence), true)
	testutil.AssertEqual(t, "persistence cause", errors.Is(perr, io.ErrClosedPipe), true)
	testutil.AssertErrorContains(t, perr, "io: read/write on closed pipe")

	tests := map[string]struct {
		err error
		exp string
	}{
		"predefined":  {err: ErrBadAction, exp: "unknown action"},
		"wrapped":     {err: fmt.Errorf("join: %w", ErrMissingID), exp: "missing id"},
		"persistence": {err: perr, exp: "storage failure"},
		"foreign":     {err: io.EOF, exp: "internal error"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "message", Message(tt.err), tt.exp)
		})
	}
}
