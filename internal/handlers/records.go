package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// reserved query parameters that are not column filters
var listParams = map[string]bool{"page": true, "pageSize": true, "sort": true}

func (h *Handler) entity(c *gin.Context) (string, bool) {
	collection := c.Param("collection")
	entity, ok := services.RecordEntity(collection)
	if !ok {
		c.JSON(http.StatusNotFound, v1.Error{Error: "unknown collection " + collection})
	}
	return entity, ok
}

// ListRecords returns a page of records. Query parameters other than page,
// pageSize and sort are equality filters; the value "null" matches NULL.
// (GET /records/{collection})
func (h *Handler) ListRecords(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}

	var params v1.ListParams
	query := c.Request.URL.Query()
	if err := bindQuery(query, map[string]any{"page": &params.Page, "pageSize": &params.PageSize, "sort": &params.Sort}); err != nil {
		h.badRequest(c, err)
		return
	}
	page, pageSize := pagination(params.Page, params.PageSize)

	svcParams := services.ListParams{
		Filters: models.Filters{},
		Limit:   uint64(pageSize),
		Offset:  uint64((page - 1) * pageSize),
	}
	if params.Sort != nil {
		sort, err := services.ParseSort(*params.Sort)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		svcParams.Sort = sort
	}
	for name, values := range query {
		if listParams[name] || len(values) == 0 {
			continue
		}
		if values[0] == "null" {
			svcParams.Filters[name] = nil
		} else {
			svcParams.Filters[name] = values[0]
		}
	}

	result, err := h.recordSrv.List(c.Request.Context(), entity, svcParams)
	if err != nil {
		h.writeError(c, "failed to list records", err)
		return
	}

	c.JSON(http.StatusOK, v1.RecordListResponse{
		Page:      page,
		PageCount: pageCount(result.Total, pageSize),
		Total:     result.Total,
		Items:     v1.NewRecords(result.Rows),
	})
}

// (POST /records/{collection})
func (h *Handler) CreateRecord(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	var body v1.Record
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	row, err := h.recordSrv.Create(c.Request.Context(), entity, models.Row(body))
	if err != nil {
		h.writeError(c, "failed to create record", err)
		return
	}
	c.JSON(http.StatusCreated, v1.Record(row))
}

// (GET /records/{collection}/{id})
func (h *Handler) GetRecord(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	row, err := h.recordSrv.Get(c.Request.Context(), entity, c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get record", err)
		return
	}
	c.JSON(http.StatusOK, v1.Record(row))
}

// (PATCH /records/{collection}/{id})
func (h *Handler) UpdateRecord(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	var body v1.Record
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if len(body) == 0 {
		h.badRequest(c, srvErrors.NewValidationError("body", "no fields to update"))
		return
	}
	row, err := h.recordSrv.Update(c.Request.Context(), entity, c.Param("id"), models.Row(body))
	if err != nil {
		h.writeError(c, "failed to update record", err)
		return
	}
	c.JSON(http.StatusOK, v1.Record(row))
}

// (DELETE /records/{collection}/{id})
func (h *Handler) DeleteRecord(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	if err := h.recordSrv.Delete(c.Request.Context(), entity, c.Param("id")); err != nil {
		h.writeError(c, "failed to delete record", err)
		return
	}
	c.Status(http.StatusNoContent)
}
