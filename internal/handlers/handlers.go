package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/services"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	recordSrv    *services.RecordService
	certSrv      *services.CertificateService
	workOrderSrv *services.WorkOrderService
	exportSrv    *services.ExportService
	sqlSrv       *services.SQLService
	log          *zap.SugaredLogger
}

func New(
	recordSrv *services.RecordService,
	certSrv *services.CertificateService,
	workOrderSrv *services.WorkOrderService,
	exportSrv *services.ExportService,
	sqlSrv *services.SQLService,
) *Handler {
	return &Handler{
		recordSrv:    recordSrv,
		certSrv:      certSrv,
		workOrderSrv: workOrderSrv,
		exportSrv:    exportSrv,
		sqlSrv:       sqlSrv,
		log:          zap.S().Named("handlers"),
	}
}

// Register mounts every API route on router, which is expected to be the
// /api/v1 group.
func (h *Handler) Register(router *gin.RouterGroup) {
	records := router.Group("/records/:collection")
	records.GET("", h.ListRecords)
	records.POST("", h.CreateRecord)
	records.GET("/:id", h.GetRecord)
	records.PATCH("/:id", h.UpdateRecord)
	records.DELETE("/:id", h.DeleteRecord)

	certs := router.Group("/certificates")
	certs.GET("", h.ListCertificates)
	certs.POST("", h.CreateCertificate)
	certs.GET("/export", h.ExportCertificates)
	certs.GET("/:id", h.GetCertificate)
	certs.PATCH("/:id", h.UpdateCertificate)
	certs.DELETE("/:id", h.DeleteCertificate)

	orders := router.Group("/work-orders")
	orders.GET("", h.ListWorkOrders)
	orders.POST("", h.CreateWorkOrder)
	orders.GET("/:id", h.GetWorkOrder)
	orders.POST("/:id/items", h.AddWorkOrderItems)
	orders.DELETE("/:id/items/:itemId", h.RemoveWorkOrderItem)

	router.POST("/sql", h.ExecuteSQL)
}

// statusOf maps the error taxonomy to HTTP status codes.
func statusOf(err error) int {
	switch {
	case srvErrors.IsResourceNotFoundError(err):
		return http.StatusNotFound
	case srvErrors.IsValidationError(err), srvErrors.IsParseError(err):
		return http.StatusBadRequest
	case srvErrors.IsConflictError(err):
		return http.StatusConflict
	case srvErrors.IsBackendUnavailableError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Messages of server-side
// failures are logged and replaced by a generic one.
func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw(msg, "error", err, "path", c.FullPath())
		c.JSON(status, v1.Error{Error: msg + ": " + srvErrors.Kind(err)})
		return
	}
	c.JSON(status, v1.Error{Error: err.Error()})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
}

// bindQuery reads the named form-style query parameters into dest fields.
func bindQuery(query url.Values, params map[string]any) error {
	for name, dest := range params {
		if err := runtime.BindQueryParameter("form", true, false, name, query, dest); err != nil {
			return srvErrors.NewValidationError(name, err.Error())
		}
	}
	return nil
}

// pagination resolves page and pageSize with defaults and bounds.
func pagination(pagePtr, sizePtr *int) (page, pageSize int) {
	page = 1
	if pagePtr != nil && *pagePtr > 0 {
		page = *pagePtr
	}
	pageSize = defaultPageSize
	if sizePtr != nil && *sizePtr > 0 {
		pageSize = min(*sizePtr, maxPageSize)
	}
	return page, pageSize
}

func pageCount(total, pageSize int) int {
	n := (total + pageSize - 1) / pageSize
	if n == 0 {
		return 1
	}
	return n
}
