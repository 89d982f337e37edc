package store

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditStore struct {
	db *sqlx.DB
}

func NewAuditStore(db *sqlx.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Record(ctx context.Context, tx *sqlx.Tx, entry *bracket.AuditEntry) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_audit (id, match_id, tournament_id, actor_id, action, before_state, after_state)
		VALUES (:id, :match_id, :tournament_id, :actor_id, :action, :before_state, :after_state)`, entry)
	return err
}

func (s *AuditStore) GetMatchAudit(ctx context.Context, matchID uuid.UUID) ([]bracket.AuditEntry, error) {
	var entries []bracket.AuditEntry
	err := s.db.SelectContext(ctx, &entries, "SELECT * FROM match_audit WHERE match_id = ? ORDER BY created_at ASC, rowid ASC", matchID)
	return entries, err
}
