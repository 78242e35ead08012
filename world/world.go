package world

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/icexin/minicraft-server/proto"
)

type BlockStore interface {
	LoadBlocks() ([]proto.Block, error)
	SaveBlocks([]proto.Block) error
}

// World is the authoritative block set. Mutations are written through to the
// BlockStore before they are acknowledged.
type World struct {
	mutex  sync.Mutex
	db     BlockStore
	blocks map[proto.Vec3]int
	chunks map[proto.Vec3]string
}

func NewWorld(db BlockStore) (*World, error) {
	blocks, err := db.LoadBlocks()
	if err != nil {
		return nil, err
	}
	w := &World{
		db:     db,
		blocks: make(map[proto.Vec3]int, len(blocks)),
		chunks: make(map[proto.Vec3]string),
	}
	version := GenerateChunkVersion()
	for _, b := range blocks {
		w.blocks[b.Pos()] = b.ID
		w.chunks[b.Pos().Chunkid()] = version
	}
	return w, nil
}

func (w *World) Blocks() []proto.Block {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.snapshot()
}

func (w *World) Len() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.blocks)
}

func (w *World) SetBlock(b proto.Block) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	pos := b.Pos()
	prev, existed := w.blocks[pos]
	w.blocks[pos] = b.ID
	if err := w.db.SaveBlocks(w.snapshot()); err != nil {
		if existed {
			w.blocks[pos] = prev
		} else {
			delete(w.blocks, pos)
		}
		return proto.PersistenceError(err)
	}
	w.chunks[pos.Chunkid()] = GenerateChunkVersion()
	return nil
}

func (w *World) RemoveBlock(pos proto.Vec3) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	prev, existed := w.blocks[pos]
	delete(w.blocks, pos)
	if err := w.db.SaveBlocks(w.snapshot()); err != nil {
		if existed {
			w.blocks[pos] = prev
		}
		return proto.PersistenceError(err)
	}
	if existed {
		w.chunks[pos.Chunkid()] = GenerateChunkVersion()
	}
	return nil
}

// Chunk returns the current version of chunk (p, q) and, when it differs from
// version, every block inside it.
func (w *World) Chunk(p, q int, version string) (string, []proto.Block) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	cid := proto.Vec3{X: p, Z: q}
	current := w.chunks[cid]
	if version == current {
		return current, nil
	}
	var blocks []proto.Block
	for pos, id := range w.blocks {
		if pos.Chunkid() == cid {
			blocks = append(blocks, proto.Block{X: pos.X, Y: pos.Y, Z: pos.Z, ID: id})
		}
	}
	sortBlocks(blocks)
	return current, blocks
}

func (w *World) snapshot() []proto.Block {
	blocks := make([]proto.Block, 0, len(w.blocks))
	for pos, id := range w.blocks {
		blocks = append(blocks, proto.Block{X: pos.X, Y: pos.Y, Z: pos.Z, ID: id})
	}
	sortBlocks(blocks)
	return blocks
}

func sortBlocks(blocks []proto.Block) {
	sort.Slice(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}

func GenerateChunkVersion() string {
	return strconv.FormatInt(time.Now().UnixNano(), 16)
}
