package player

import "github.com/xingyu42/farm-game-sub000/internal/domain"

// Tx is the mutable snapshot handed to ExecuteUnderLock bodies. All
// mutations must go through Mutate so the store knows to persist; the
// write is coalesced to a single atomic file replace.
type Tx struct {
	player *domain.Player
	dirty  bool
}

// Player returns the snapshot. Treat reads as current for the duration
// of the lock; mutate only through Mutate.
func (tx *Tx) Player() *domain.Player {
	return tx.player
}

// Mutate applies fn to the snapshot and marks it for persistence.
func (tx *Tx) Mutate(fn func(*domain.Player)) {
	fn(tx.player)
	tx.dirty = true
}
