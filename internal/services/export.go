package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bwservicing/certtrack/internal/models"
)

const registerSheet = "Certificates"

var registerHeader = []any{"Certificate", "Company", "Equipment", "Service date", "Retest date", "Status", "Notes"}

// ExportService writes the certificate register as an xlsx workbook.
type ExportService struct {
	certificates *CertificateService
}

func NewExportService(certs *CertificateService) *ExportService {
	return &ExportService{certificates: certs}
}

func (s *ExportService) Certificates(ctx context.Context, w io.Writer, params CertificateListParams) (int, error) {
	params.Limit, params.Offset = 0, 0
	result, err := s.certificates.List(ctx, params)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), registerSheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(registerSheet, "A1", &registerHeader); err != nil {
		return 0, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	if err := f.SetRowStyle(registerSheet, 1, 1, bold); err != nil {
		return 0, err
	}

	for i, c := range result.Certificates {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		row := []any{
			c.CertificateNumber, c.CompanyID, c.EquipmentID,
			dateCell(c.ServiceDate), dateCell(c.RetestDate), string(c.Status), c.Notes,
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return 0, err
		}
	}

	if err := f.SetColWidth(registerSheet, "A", "G", 18); err != nil {
		return 0, err
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write register: %w", err)
	}
	return len(result.Certificates), nil
}

// ReadRegister parses a register written by Certificates back into
// certificate numbers and statuses keyed by number.
func ReadRegister(r io.Reader) (map[string]models.CertificateStatus, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(registerSheet)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.CertificateStatus, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue
		}
		out[row[0]] = models.CertificateStatus(row[5])
	}
	return out, nil
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
