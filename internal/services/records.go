package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// recordEntities are the entities served by the generic record endpoints.
// Certificates and work orders have their own services because their writes
// go through the numbered and composite paths.
var recordEntities = map[string]string{
	"companies":          store.EntityCompany,
	"contacts":           store.EntityContact,
	"equipment":          store.EntityEquipment,
	"compressor-records": store.EntityCompressorRecord,
}

// RecordEntity maps a collection name used in URLs to its logical entity.
func RecordEntity(collection string) (string, bool) {
	e, ok := recordEntities[collection]
	return e, ok
}

type RecordService struct {
	store *store.Store
}

func NewRecordService(st *store.Store) *RecordService {
	return &RecordService{store: st}
}

type ListParams struct {
	Filters models.Filters
	Sort    []models.OrderBy
	Limit   uint64
	Offset  uint64
}

type ListResult struct {
	Rows  []models.Row
	Total int
}

func (s *RecordService) List(ctx context.Context, entity string, params ListParams) (*ListResult, error) {
	rows, err := s.store.Adapter().Query(ctx, models.QueryDescriptor{
		Table:   entity,
		Filters: params.Filters,
		Order:   params.Sort,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		return nil, err
	}

	// Get total count without pagination
	all, err := s.store.Adapter().Query(ctx, models.QueryDescriptor{
		Table:   entity,
		Columns: []string{"id"},
		Filters: params.Filters,
	})
	if err != nil {
		return nil, err
	}

	return &ListResult{Rows: rows, Total: len(all)}, nil
}

func (s *RecordService) Get(ctx context.Context, entity, id string) (models.Row, error) {
	row, err := s.store.Adapter().QueryOne(ctx, models.QueryDescriptor{
		Table:   entity,
		Filters: models.Filters{"id": id},
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, srvErrors.NewNotFoundError(entity, id)
	}
	return row, nil
}

func (s *RecordService) Create(ctx context.Context, entity string, fields models.Row) (models.Row, error) {
	return s.store.Adapter().Insert(ctx, entity, fields)
}

func (s *RecordService) Update(ctx context.Context, entity, id string, fields models.Row) (models.Row, error) {
	row, err := s.store.Adapter().Update(ctx, entity, fields, models.Filters{"id": id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, srvErrors.NewNotFoundError(entity, id)
	}
	return row, nil
}

// Delete removes a row. A row that is already gone is not an error, so a
// retried delete succeeds.
func (s *RecordService) Delete(ctx context.Context, entity, id string) error {
	_, err := s.store.Adapter().Delete(ctx, entity, models.Filters{"id": id})
	return err
}

// ParseSort reads "field:dir" terms separated by commas. The direction is
// optional and defaults to ascending.
func ParseSort(raw []string) ([]models.OrderBy, error) {
	var order []models.OrderBy
	for _, item := range raw {
		for _, term := range strings.Split(item, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			col, dir, _ := strings.Cut(term, ":")
			d, ok := models.ParseSortDirection(dir)
			if !ok || col == "" {
				return nil, srvErrors.NewValidationError("sort", fmt.Sprintf("invalid sort term %q", term))
			}
			order = append(order, models.OrderBy{Column: col, Direction: d})
		}
	}
	return order, nil
}
