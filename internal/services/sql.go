package services

import (
	"context"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
)

// SQLService runs the restricted SQL dialect kept for older clients.
type SQLService struct {
	store *store.Store
}

func NewSQLService(st *store.Store) *SQLService {
	return &SQLService{store: st}
}

func (s *SQLService) Execute(ctx context.Context, sql string, params []any) ([]models.Row, error) {
	return s.store.Adapter().RawQuery(ctx, sql, params)
}
