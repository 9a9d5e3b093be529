package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/pkg/scheduler"
)

// WorkOrderService runs composite work order writes on the shared scheduler
// so the number of concurrent write transactions is bounded by its workers.
type WorkOrderService struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	log       *zap.SugaredLogger
}

func NewWorkOrderService(st *store.Store, s *scheduler.Scheduler) *WorkOrderService {
	return &WorkOrderService{
		store:     st,
		scheduler: s,
		log:       zap.S().Named("work_order_service"),
	}
}

func (s *WorkOrderService) Create(ctx context.Context, fields models.Row, items []models.Row) (models.WorkOrder, error) {
	return s.run(ctx, "create", func(ctx context.Context) (*models.CompositeRecord, error) {
		return s.store.Writer().CreateComposite(ctx, fields, items)
	})
}

func (s *WorkOrderService) AddItems(ctx context.Context, id string, items []models.Row) (models.WorkOrder, error) {
	return s.run(ctx, "add items", func(ctx context.Context) (*models.CompositeRecord, error) {
		return s.store.Writer().AddItems(ctx, id, items)
	})
}

func (s *WorkOrderService) RemoveItem(ctx context.Context, id, itemID string) (models.WorkOrder, error) {
	return s.run(ctx, "remove item", func(ctx context.Context) (*models.CompositeRecord, error) {
		return s.store.Writer().RemoveItem(ctx, id, itemID)
	})
}

func (s *WorkOrderService) Get(ctx context.Context, id string) (models.WorkOrder, error) {
	rec, err := s.store.Writer().Get(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	return rec.WorkOrder(), nil
}

type WorkOrderListParams struct {
	CompanyID string
	Status    string
	Limit     uint64
	Offset    uint64
}

type WorkOrderListResult struct {
	WorkOrders []models.WorkOrder
	Total      int
}

// List returns work orders newest first, without their items.
func (s *WorkOrderService) List(ctx context.Context, params WorkOrderListParams) (*WorkOrderListResult, error) {
	filters := models.Filters{}
	if params.CompanyID != "" {
		filters["company_id"] = params.CompanyID
	}
	if params.Status != "" {
		filters["status"] = params.Status
	}

	rows, err := s.store.Adapter().Query(ctx, models.QueryDescriptor{
		Table:   store.EntityWorkOrder,
		Filters: filters,
		Order:   []models.OrderBy{{Column: "created_at", Direction: models.SortDesc}},
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		return nil, err
	}
	all, err := s.store.Adapter().Query(ctx, models.QueryDescriptor{
		Table:   store.EntityWorkOrder,
		Columns: []string{"id"},
		Filters: filters,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.WorkOrder, 0, len(rows))
	for _, row := range rows {
		rec := models.CompositeRecord{Parent: row}
		out = append(out, rec.WorkOrder())
	}
	return &WorkOrderListResult{WorkOrders: out, Total: len(all)}, nil
}

func (s *WorkOrderService) run(ctx context.Context, op string, w scheduler.Work[*models.CompositeRecord]) (models.WorkOrder, error) {
	rec, err := scheduler.Run(ctx, s.scheduler, w)
	if err != nil {
		s.log.Debugw("work order write failed", "op", op, "error", err)
		return models.WorkOrder{}, err
	}
	return rec.WorkOrder(), nil
}
