package proto

import (
	"math"
	"time"
)

const (
	ChunkWidth = 32
)

type Vec3 struct {
	X, Y, Z int
}

func (v Vec3) Chunkid() Vec3 {
	return Vec3{
		int(math.Floor(float64(v.X) / ChunkWidth)),
		0,
		int(math.Floor(float64(v.Z) / ChunkWidth)),
	}
}

// world

type Block struct {
	X  int `json:"x"`
	Y  int `json:"y"`
	Z  int `json:"z"`
	ID int `json:"id"`
}

func (b Block) Pos() Vec3 {
	return Vec3{b.X, b.Y, b.Z}
}

// players

type Player struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Color string  `json:"color"`
}

// PlayerRecord is the stored form of a Player. LastUpdate never leaves the server.
type PlayerRecord struct {
	Player
	LastUpdate time.Time `json:"last_update_time"`
}
