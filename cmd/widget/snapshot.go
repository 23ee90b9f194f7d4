package main

import (
	"encoding/json"
	"fmt"
	"os"

	"tms-widget/internal/dto"
	"tms-widget/internal/storage"
)

// restoreSnapshot loads a JSON storage export so a previous conversation can
// be resumed from another machine.
func restoreSnapshot(m *storage.Manager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap dto.StorageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	m.Import(snap)
	return nil
}
