package models

import "time"

// CompositeRecord is a parent row together with the child rows it owns.
type CompositeRecord struct {
	Parent   Row
	Children []Row
}

type WorkOrderItem struct {
	ID          string
	Description string
	Quantity    float64
	UnitPrice   float64
	Subtotal    float64
	CreatedAt   time.Time
}

type WorkOrder struct {
	ID        string
	Number    string
	CompanyID string
	Status    string
	VATRate   float64
	Total     float64
	VAT       float64
	Notes     string
	Items     []WorkOrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkOrder reads the composite as a work order with its line items.
func (c *CompositeRecord) WorkOrder() WorkOrder {
	wo := WorkOrder{
		ID:        c.Parent.ID(),
		Number:    c.Parent.String("work_order_number"),
		CompanyID: c.Parent.String("company_id"),
		Status:    c.Parent.String("status"),
		VATRate:   c.Parent.Float("vat_rate"),
		Total:     c.Parent.Float("total"),
		VAT:       c.Parent.Float("vat"),
		Notes:     c.Parent.String("notes"),
		Items:     make([]WorkOrderItem, 0, len(c.Children)),
		CreatedAt: c.Parent.Time("created_at"),
		UpdatedAt: c.Parent.Time("updated_at"),
	}
	for _, item := range c.Children {
		wo.Items = append(wo.Items, WorkOrderItem{
			ID:          item.ID(),
			Description: item.String("description"),
			Quantity:    item.Float("quantity"),
			UnitPrice:   item.Float("unit_price"),
			Subtotal:    item.Float("subtotal"),
			CreatedAt:   item.Time("created_at"),
		})
	}
	return wo
}
