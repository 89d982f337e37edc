package store

import "github.com/jmoiron/sqlx"

// Stores bundles every store over one database handle.
type Stores struct {
	Tournaments *TournamentStore
	Rosters     *RosterStore
	Snapshots   *SnapshotStore
	Audit       *AuditStore
	Users       *UserStore
}

func NewStores(db *sqlx.DB) *Stores {
	return &Stores{
		Tournaments: NewTournamentStore(db),
		Rosters:     NewRosterStore(db),
		Snapshots:   NewSnapshotStore(db),
		Audit:       NewAuditStore(db),
		Users:       NewUserStore(db),
	}
}
