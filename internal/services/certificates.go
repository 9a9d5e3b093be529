package services

import (
	"context"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/internal/util"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

type CertificateService struct {
	store *store.Store
}

func NewCertificateService(st *store.Store) *CertificateService {
	return &CertificateService{store: st}
}

type CertificateListParams struct {
	CompanyID   string
	EquipmentID string
	Statuses    []models.CertificateStatus
	Limit       uint64
	Offset      uint64
}

type CertificateListResult struct {
	Certificates []models.Certificate
	Total        int
}

// Create numbers and stores a certificate. Any number, retest date or status
// sent by the caller is replaced.
func (s *CertificateService) Create(ctx context.Context, fields models.Row) (models.Certificate, error) {
	values := fields.Clone()
	delete(values, "id")
	delete(values, "certificate_number")

	w := s.store.Writer()
	row, err := w.CreateNumbered(ctx, store.EntityCertificate, w.Namespace(store.CertificateNamespace.Name), values)
	if err != nil {
		return models.Certificate{}, err
	}
	return s.Get(ctx, row.ID())
}

// Update changes a certificate. The number is immutable once issued.
func (s *CertificateService) Update(ctx context.Context, id string, fields models.Row) (models.Certificate, error) {
	values := fields.Clone()
	delete(values, "certificate_number")

	row, err := s.store.Adapter().Update(ctx, store.EntityCertificate, values, models.Filters{"id": id})
	if err != nil {
		return models.Certificate{}, err
	}
	if row == nil {
		return models.Certificate{}, srvErrors.NewNotFoundError("certificate", id)
	}
	return s.Get(ctx, id)
}

func (s *CertificateService) Get(ctx context.Context, id string) (models.Certificate, error) {
	row, err := s.store.Adapter().QueryOne(ctx, models.QueryDescriptor{
		Table:   store.EntityCertificate,
		Filters: models.Filters{"id": id},
	})
	if err != nil {
		return models.Certificate{}, err
	}
	if row == nil {
		return models.Certificate{}, srvErrors.NewNotFoundError("certificate", id)
	}
	return models.NewCertificate(row), nil
}

// Delete is idempotent like RecordService.Delete.
func (s *CertificateService) Delete(ctx context.Context, id string) error {
	_, err := s.store.Adapter().Delete(ctx, store.EntityCertificate, models.Filters{"id": id})
	return err
}

// List returns certificates ordered by retest date. Status is derived when
// the row is read, so a status filter is applied here rather than in storage
// and pagination follows it.
func (s *CertificateService) List(ctx context.Context, params CertificateListParams) (*CertificateListResult, error) {
	filters := models.Filters{}
	if params.CompanyID != "" {
		filters["company_id"] = params.CompanyID
	}
	if params.EquipmentID != "" {
		filters["equipment_id"] = params.EquipmentID
	}

	q := models.QueryDescriptor{
		Table:   store.EntityCertificate,
		Filters: filters,
		Order: []models.OrderBy{
			{Column: "retest_date", Direction: models.SortAsc},
			{Column: "certificate_number", Direction: models.SortAsc},
		},
	}
	for _, st := range params.Statuses {
		if !st.Valid() {
			return nil, srvErrors.NewValidationError("status", "unknown status "+string(st))
		}
	}

	rows, err := s.store.Adapter().Query(ctx, q)
	if err != nil {
		return nil, err
	}

	certs := make([]models.Certificate, 0, len(rows))
	for _, row := range rows {
		c := models.NewCertificate(row)
		if len(params.Statuses) > 0 && !util.Contains(params.Statuses, c.Status) {
			continue
		}
		certs = append(certs, c)
	}

	total := len(certs)
	return &CertificateListResult{Certificates: page(certs, params.Limit, params.Offset), Total: total}, nil
}

func page[T any](items []T, limit, offset uint64) []T {
	if offset >= uint64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < uint64(len(items)) {
		items = items[:limit]
	}
	return items
}
