package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"

	"github.com/icexin/minicraft-server/proto"
)

var (
	blockBucket  = []byte("blocks")
	playerBucket = []byte("players")
)

type Options struct {
	// NoSync skips fsync after each commit. Only for tests and throwaway worlds.
	NoSync  bool
	Timeout time.Duration
}

// Store persists the two collections of the world, blocks and players.
// Every save rewrites its collection whole inside one transaction, so the last
// committed transaction is always a complete snapshot.
type Store struct {
	db *bolt.DB
}

func Open(p string, opts Options) (*Store, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	db, err := bolt.Open(p, 0666, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blockBucket)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(playerBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	db.NoSync = opts.NoSync
	return &Store{
		db: db,
	}, nil
}

func (s *Store) LoadBlocks() ([]proto.Block, error) {
	var blocks []proto.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(blockBucket).ForEach(func(k, v []byte) error {
			pos, err := decodeVec3(k)
			if err != nil {
				return err
			}
			w, err := decodeBlockValue(v)
			if err != nil {
				return err
			}
			blocks = append(blocks, proto.Block{X: pos.X, Y: pos.Y, Z: pos.Z, ID: w})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading blocks: %w", err)
	}
	return blocks, nil
}

func (s *Store) SaveBlocks(blocks []proto.Block) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := recreate(tx, blockBucket)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if err := bkt.Put(encodeVec3(b.Pos()), encodeBlockValue(b.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving %d blocks: %w", len(blocks), err)
	}
	return nil
}

func (s *Store) LoadPlayers() ([]proto.PlayerRecord, error) {
	var players []proto.PlayerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(playerBucket).ForEach(func(k, v []byte) error {
			var rec proto.PlayerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("player %q: %w", k, err)
			}
			players = append(players, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}
	return players, nil
}

func (s *Store) SavePlayers(players []proto.PlayerRecord) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := recreate(tx, playerBucket)
		if err != nil {
			return err
		}
		for _, p := range players {
			value, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(p.ID), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving %d players: %w", len(players), err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Sync(); err != nil {
		log.Printf("sync %s: %v", s.db.Path(), err)
	}
	return s.db.Close()
}

func recreate(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolterrors.ErrBucketNotFound) {
		return nil, err
	}
	return tx.CreateBucket(name)
}

func encodeVec3(v proto.Vec3) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, [...]int64{int64(v.X), int64(v.Y), int64(v.Z)})
	return buf.Bytes()
}

func decodeVec3(b []byte) (proto.Vec3, error) {
	if len(b) != 8*3 {
		return proto.Vec3{}, fmt.Errorf("bad block key length:%d", len(b))
	}
	var arr [3]int64
	binary.Read(bytes.NewReader(b), binary.BigEndian, &arr)
	return proto.Vec3{X: int(arr[0]), Y: int(arr[1]), Z: int(arr[2])}, nil
}

func encodeBlockValue(w int) []byte {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(int64(w)))
	return value
}

func decodeBlockValue(b []byte) (int, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("bad block value length:%d", len(b))
	}
	return int(int64(binary.BigEndian.Uint64(b))), nil
}
