package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/services"
)

// (GET /work-orders)
func (h *Handler) ListWorkOrders(c *gin.Context) {
	var params v1.WorkOrderListParams
	err := bindQuery(c.Request.URL.Query(), map[string]any{
		"page":      &params.Page,
		"pageSize":  &params.PageSize,
		"companyId": &params.CompanyId,
		"status":    &params.Status,
	})
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, pageSize := pagination(params.Page, params.PageSize)

	svcParams := services.WorkOrderListParams{
		Limit:  uint64(pageSize),
		Offset: uint64((page - 1) * pageSize),
	}
	if params.CompanyId != nil {
		svcParams.CompanyID = *params.CompanyId
	}
	if params.Status != nil {
		svcParams.Status = *params.Status
	}

	result, err := h.workOrderSrv.List(c.Request.Context(), svcParams)
	if err != nil {
		h.writeError(c, "failed to list work orders", err)
		return
	}

	apiWOs := make([]v1.WorkOrder, 0, len(result.WorkOrders))
	for _, wo := range result.WorkOrders {
		apiWOs = append(apiWOs, v1.NewWorkOrderFromModel(wo))
	}
	c.JSON(http.StatusOK, v1.WorkOrderListResponse{
		Page:       page,
		PageCount:  pageCount(result.Total, pageSize),
		Total:      result.Total,
		WorkOrders: apiWOs,
	})
}

// CreateWorkOrder stores a work order and its items in one transaction.
// (POST /work-orders)
func (h *Handler) CreateWorkOrder(c *gin.Context) {
	var body v1.WorkOrderInput
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.badRequest(c, err)
		return
	}

	parent, items := body.Rows()
	wo, err := h.workOrderSrv.Create(c.Request.Context(), parent, items)
	if err != nil {
		h.writeError(c, "failed to create work order", err)
		return
	}
	c.JSON(http.StatusCreated, v1.NewWorkOrderFromModel(wo))
}

// (GET /work-orders/{id})
func (h *Handler) GetWorkOrder(c *gin.Context) {
	wo, err := h.workOrderSrv.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get work order", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewWorkOrderFromModel(wo))
}

// (POST /work-orders/{id}/items)
func (h *Handler) AddWorkOrderItems(c *gin.Context) {
	var body v1.WorkOrderItemsInput
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.badRequest(c, err)
		return
	}

	wo, err := h.workOrderSrv.AddItems(c.Request.Context(), c.Param("id"), v1.ItemRows(body.Items))
	if err != nil {
		h.writeError(c, "failed to add work order items", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewWorkOrderFromModel(wo))
}

// (DELETE /work-orders/{id}/items/{itemId})
func (h *Handler) RemoveWorkOrderItem(c *gin.Context) {
	wo, err := h.workOrderSrv.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.writeError(c, "failed to remove work order item", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewWorkOrderFromModel(wo))
}
