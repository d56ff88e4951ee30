package backend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/microsoft/durabletask-go/backend"
	"github.com/microsoft/durabletask-go/backend/sqlite"
)

// NewSQLiteBackend creates the task hub's SQLite backend. An empty file name
// keeps the hub in memory.
func NewSQLiteBackend(cfg *config.TaskHubConfig, logger backend.Logger) (backend.Backend, error) {
	if cfg.SQLiteFile != "" {
		dir := filepath.Dir(cfg.SQLiteFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	be := sqlite.NewSqliteBackend(sqlite.NewSqliteOptions(cfg.SQLiteFile), logger)
	if be == nil {
		return nil, fmt.Errorf("failed to create SQLite backend at %q", cfg.SQLiteFile)
	}

	return be, nil
}
