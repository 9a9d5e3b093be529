package v1

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

type CertificateStatus string

const (
	CertificateStatusValid    CertificateStatus = "valid"
	CertificateStatusUpcoming CertificateStatus = "upcoming"
	CertificateStatusExpired  CertificateStatus = "expired"
)

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// Record is a row of one of the generic record collections.
type Record map[string]any

type RecordListResponse struct {
	Page      int      `json:"page"`
	PageCount int      `json:"pageCount"`
	Total     int      `json:"total"`
	Items     []Record `json:"items"`
}

// ListParams are the query parameters shared by list endpoints.
type ListParams struct {
	Page     *int      `form:"page" json:"page,omitempty"`
	PageSize *int      `form:"pageSize" json:"pageSize,omitempty"`
	Sort     *[]string `form:"sort" json:"sort,omitempty"`
}

type Certificate struct {
	Id                string             `json:"id"`
	CertificateNumber string             `json:"certificateNumber"`
	CompanyId         string             `json:"companyId"`
	EquipmentId       *string            `json:"equipmentId,omitempty"`
	ServiceDate       openapi_types.Date `json:"serviceDate"`
	RetestDate        openapi_types.Date `json:"retestDate"`
	Status            CertificateStatus  `json:"status"`
	Notes             *string            `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// CertificateInput is accepted on create and update. Number, retest date
// and status are assigned by the server.
type CertificateInput struct {
	CompanyId   *string             `json:"companyId,omitempty" validate:"omitempty,min=1"`
	EquipmentId *string             `json:"equipmentId,omitempty"`
	ServiceDate *openapi_types.Date `json:"serviceDate,omitempty"`
	Notes       *string             `json:"notes,omitempty"`
}

type CertificateListParams struct {
	Page        *int                 `form:"page" json:"page,omitempty"`
	PageSize    *int                 `form:"pageSize" json:"pageSize,omitempty"`
	CompanyId   *string              `form:"companyId" json:"companyId,omitempty"`
	EquipmentId *string              `form:"equipmentId" json:"equipmentId,omitempty"`
	Status      *[]CertificateStatus `form:"status" json:"status,omitempty"`
}

type CertificateListResponse struct {
	Page         int           `json:"page"`
	PageCount    int           `json:"pageCount"`
	Total        int           `json:"total"`
	Certificates []Certificate `json:"certificates"`
}

type WorkOrderItem struct {
	Id          string    `json:"id"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	Subtotal    float64   `json:"subtotal"`
	CreatedAt   time.Time `json:"createdAt"`
}

type WorkOrder struct {
	Id        string          `json:"id"`
	Number    string          `json:"number"`
	CompanyId string          `json:"companyId"`
	Status    string          `json:"status"`
	VatRate   float64         `json:"vatRate"`
	Total     float64         `json:"total"`
	Vat       float64         `json:"vat"`
	Notes     *string         `json:"notes,omitempty"`
	Items     []WorkOrderItem `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type WorkOrderItemInput struct {
	Description string   `json:"description" validate:"required"`
	Quantity    *float64 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	UnitPrice   *float64 `json:"unitPrice" validate:"required"`
}

// WorkOrderInput creates a work order. Total and VAT are computed by the
// server from the items.
type WorkOrderInput struct {
	CompanyId string               `json:"companyId" validate:"required"`
	Status    *string              `json:"status,omitempty"`
	VatRate   *float64             `json:"vatRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes     *string              `json:"notes,omitempty"`
	Items     []WorkOrderItemInput `json:"items" validate:"dive"`
}

type WorkOrderItemsInput struct {
	Items []WorkOrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type WorkOrderListParams struct {
	Page      *int    `form:"page" json:"page,omitempty"`
	PageSize  *int    `form:"pageSize" json:"pageSize,omitempty"`
	CompanyId *string `form:"companyId" json:"companyId,omitempty"`
	Status    *string `form:"status" json:"status,omitempty"`
}

type WorkOrderListResponse struct {
	Page       int         `json:"page"`
	PageCount  int         `json:"pageCount"`
	Total      int         `json:"total"`
	WorkOrders []WorkOrder `json:"workOrders"`
}

type SQLRequest struct {
	Sql    string `json:"sql" validate:"required"`
	Params []any  `json:"params,omitempty"`
}

type SQLResponse struct {
	Rows []Record `json:"rows"`
}

type Health struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}
