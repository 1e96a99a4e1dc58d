package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/config"
)

// BackupStore is the durable config.BackupStore: an append-only audit
// trail of every accepted config write, one row per (component, record,
// version).
type BackupStore struct {
	db *sql.DB
}

// NewBackupStore constructs a BackupStore.
func NewBackupStore(client *Client) *BackupStore {
	return &BackupStore{db: client.db}
}

func (s *BackupStore) SaveBackup(ctx context.Context, b *config.Backup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_backups (component, record_id, version, digest, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.Component, b.ID, b.Version, b.Digest, b.Payload, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("save config backup: %w", err)
	}
	return nil
}
