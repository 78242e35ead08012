package world

import (
	"time"

	"github.com/icexin/minicraft-server/proto"
)

// DefaultStaleness is how long a polling client may stay silent before it is
// presumed gone.
const DefaultStaleness = 4000 * time.Millisecond

type LivenessPolicy interface {
	IsStale(rec proto.PlayerRecord, now time.Time) bool
}

// StalenessPolicy expires players that have not updated within Threshold.
type StalenessPolicy struct {
	Threshold time.Duration
}

func (p StalenessPolicy) IsStale(rec proto.PlayerRecord, now time.Time) bool {
	return now.Sub(rec.LastUpdate) >= p.Threshold
}

// ConnectionPolicy never expires anyone; membership follows the connection.
type ConnectionPolicy struct{}

func (ConnectionPolicy) IsStale(proto.PlayerRecord, time.Time) bool {
	return false
}
