package v1

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bwservicing/certtrack/internal/models"
)

// NewCertificateFromModel converts a models.Certificate to an API Certificate.
func NewCertificateFromModel(c models.Certificate) Certificate {
	apiCert := Certificate{
		Id:                c.ID,
		CertificateNumber: c.CertificateNumber,
		CompanyId:         c.CompanyID,
		ServiceDate:       openapi_types.Date{Time: c.ServiceDate},
		RetestDate:        openapi_types.Date{Time: c.RetestDate},
		Status:            CertificateStatus(c.Status),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.EquipmentID != "" {
		apiCert.EquipmentId = &c.EquipmentID
	}
	if c.Notes != "" {
		apiCert.Notes = &c.Notes
	}
	return apiCert
}

// Row returns the fields set on the input, keyed by column.
func (in CertificateInput) Row() models.Row {
	row := models.Row{}
	if in.CompanyId != nil {
		row["company_id"] = *in.CompanyId
	}
	if in.EquipmentId != nil {
		row["equipment_id"] = *in.EquipmentId
	}
	if in.ServiceDate != nil {
		row["service_date"] = in.ServiceDate.Format(time.DateOnly)
	}
	if in.Notes != nil {
		row["notes"] = *in.Notes
	}
	return row
}

// Statuses converts the status query parameter.
func (p CertificateListParams) Statuses() []models.CertificateStatus {
	if p.Status == nil {
		return nil
	}
	out := make([]models.CertificateStatus, 0, len(*p.Status))
	for _, s := range *p.Status {
		out = append(out, models.CertificateStatus(s))
	}
	return out
}

// NewWorkOrderFromModel converts a models.WorkOrder to an API WorkOrder.
func NewWorkOrderFromModel(wo models.WorkOrder) WorkOrder {
	apiWO := WorkOrder{
		Id:        wo.ID,
		Number:    wo.Number,
		CompanyId: wo.CompanyID,
		Status:    wo.Status,
		VatRate:   wo.VATRate,
		Total:     wo.Total,
		Vat:       wo.VAT,
		Items:     make([]WorkOrderItem, 0, len(wo.Items)),
		CreatedAt: wo.CreatedAt,
		UpdatedAt: wo.UpdatedAt,
	}
	if wo.Notes != "" {
		apiWO.Notes = &wo.Notes
	}
	for _, item := range wo.Items {
		apiWO.Items = append(apiWO.Items, WorkOrderItem{
			Id:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
			CreatedAt:   item.CreatedAt,
		})
	}
	return apiWO
}

// Rows splits the input into the parent row and its item rows.
func (in WorkOrderInput) Rows() (models.Row, []models.Row) {
	parent := models.Row{"company_id": in.CompanyId}
	if in.Status != nil {
		parent["status"] = *in.Status
	}
	if in.VatRate != nil {
		parent["vat_rate"] = *in.VatRate
	}
	if in.Notes != nil {
		parent["notes"] = *in.Notes
	}
	return parent, ItemRows(in.Items)
}

func ItemRows(items []WorkOrderItemInput) []models.Row {
	rows := make([]models.Row, 0, len(items))
	for _, item := range items {
		row := models.Row{"description": item.Description}
		if item.UnitPrice != nil {
			row["unit_price"] = *item.UnitPrice
		}
		if item.Quantity != nil {
			row["quantity"] = *item.Quantity
		}
		rows = append(rows, row)
	}
	return rows
}

// NewRecords converts store rows to API records.
func NewRecords(rows []models.Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record(r))
	}
	return out
}
