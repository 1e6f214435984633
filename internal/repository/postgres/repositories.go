package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/repository"
)

// NewRepositories creates all repositories backed by the given database
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		OrderMapping: NewOrderMappingRepository(db, logger),
	}
}
