package postgres

import (
	"database/sql"
	"errors"

	"viewbot/internal/repository"
)

// SnapshotRepo implements repository.SnapshotStore on the snapshots table
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo creates a new snapshot repository
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Load returns the stored payload of a record
func (r *SnapshotRepo) Load(name string) ([]byte, error) {
	var payload []byte
	query := `SELECT payload FROM snapshots WHERE name = $1`
	err := r.db.QueryRow(query, name).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// Save replaces a record in a single statement
func (r *SnapshotRepo) Save(name string, data []byte) error {
	query := `
		INSERT INTO snapshots (name, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`
	_, err := r.db.Exec(query, name, data)
	return err
}
