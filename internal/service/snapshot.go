package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"viewbot/internal/domain"
	"viewbot/internal/repository"

	"go.uber.org/zap"
)

// loadRecord decodes a snapshot record. A missing or undecodable record
// yields the zero value so one lost file never blocks startup; found is
// false in that case. Store read errors are returned.
func loadRecord[T any](store repository.SnapshotStore, name string, logger *zap.Logger) (value T, found bool, err error) {
	data, err := store.Load(name)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("No snapshot found, starting empty", zap.String("record", name))
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("load %s: %w", name, err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		logger.Warn("Snapshot is unreadable, starting empty",
			zap.String("record", name),
			zap.Error(err),
		)
		var zero T
		return zero, false, nil
	}

	return value, true, nil
}

// saveRecord writes a full snapshot of v
func saveRecord(store repository.SnapshotStore, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrPersistence, name, err)
	}
	if err := store.Save(name, data); err != nil {
		return fmt.Errorf("%w: save %s: %v", domain.ErrPersistence, name, err)
	}
	return nil
}
