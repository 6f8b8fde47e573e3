// Package catalog persists the records the engine owns: physical database
// records, table layout positions and the lifecycle journal.
package catalog

import (
	"database/sql"

	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

// Store is backed by the catalog database configured under catalog.database.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewStore(db *sql.DB, logger *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}
