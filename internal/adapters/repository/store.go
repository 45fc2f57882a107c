package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kanbanboard/core/internal/infrastructure/database"
	"github.com/kanbanboard/core/internal/ports"
)

// Store hands out repositories bound to a transaction
type Store struct {
	db *database.DB
}

// NewStore creates a new store
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// WithinTransaction implements ports.TxManager
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, ports.Repositories{
			Users: NewUserRepository(tx),
			Tasks: NewTaskRepository(tx),
		})
	})
}
