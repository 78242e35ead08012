package world

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/icexin/minicraft-server/proto"
)

type PlayerStore interface {
	LoadPlayers() ([]proto.PlayerRecord, error)
	SavePlayers([]proto.PlayerRecord) error
}

type RosterOption func(*Roster)

func WithClock(now func() time.Time) RosterOption {
	return func(r *Roster) {
		r.now = now
	}
}

// Roster holds the latest known state of every player. With a nil PlayerStore
// it lives in memory only.
type Roster struct {
	mutex    sync.Mutex
	db       PlayerStore
	liveness LivenessPolicy
	now      func() time.Time
	players  map[string]proto.PlayerRecord
}

func NewRoster(liveness LivenessPolicy, db PlayerStore, opts ...RosterOption) (*Roster, error) {
	r := &Roster{
		db:       db,
		liveness: liveness,
		now:      time.Now,
		players:  make(map[string]proto.PlayerRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	if db == nil {
		return r, nil
	}
	records, err := db.LoadPlayers()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		r.players[rec.ID] = rec
	}
	return r, nil
}

func (r *Roster) Upsert(p proto.Player) error {
	if p.ID == "" {
		return proto.ErrMissingID
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var before map[string]proto.PlayerRecord
	if r.db != nil {
		before = r.copyPlayers()
	}
	r.prune(r.now())
	r.players[p.ID] = proto.PlayerRecord{Player: p, LastUpdate: r.now()}
	if err := r.save(); err != nil {
		r.players = before
		return err
	}
	return nil
}

func (r *Roster) Remove(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.players[id]
	if !ok {
		return nil
	}
	delete(r.players, id)
	if err := r.save(); err != nil {
		r.players[id] = rec
		return err
	}
	return nil
}

func (r *Roster) Get(id string) (proto.Player, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.players[id]
	if !ok || r.liveness.IsStale(rec, r.now()) {
		return proto.Player{}, false
	}
	return rec.Player, true
}

// List returns every live player except excluding. Stale entries are dropped
// on the way.
func (r *Roster) List(excluding string) []proto.Player {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.prune(r.now()) > 0 {
		if err := r.save(); err != nil {
			log.Printf("saving pruned roster: %v", err)
		}
	}
	players := make([]proto.Player, 0, len(r.players))
	for id, rec := range r.players {
		if id == excluding {
			continue
		}
		players = append(players, rec.Player)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})
	return players
}

func (r *Roster) prune(now time.Time) int {
	n := 0
	for id, rec := range r.players {
		if r.liveness.IsStale(rec, now) {
			delete(r.players, id)
			n++
		}
	}
	return n
}

func (r *Roster) copyPlayers() map[string]proto.PlayerRecord {
	players := make(map[string]proto.PlayerRecord, len(r.players))
	for id, rec := range r.players {
		players[id] = rec
	}
	return players
}

func (r *Roster) save() error {
	if r.db == nil {
		return nil
	}
	records := make([]proto.PlayerRecord, 0, len(r.players))
	for _, rec := range r.players {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	if err := r.db.SavePlayers(records); err != nil {
		return proto.PersistenceError(err)
	}
	return nil
}
