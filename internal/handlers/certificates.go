package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) certificateListParams(c *gin.Context) (v1.CertificateListParams, error) {
	var params v1.CertificateListParams
	err := bindQuery(c.Request.URL.Query(), map[string]any{
		"page":        &params.Page,
		"pageSize":    &params.PageSize,
		"companyId":   &params.CompanyId,
		"equipmentId": &params.EquipmentId,
		"status":      &params.Status,
	})
	return params, err
}

func serviceParams(params v1.CertificateListParams) services.CertificateListParams {
	p := services.CertificateListParams{Statuses: params.Statuses()}
	if params.CompanyId != nil {
		p.CompanyID = *params.CompanyId
	}
	if params.EquipmentId != nil {
		p.EquipmentID = *params.EquipmentId
	}
	return p
}

// ListCertificates returns certificates with their derived status.
// (GET /certificates)
func (h *Handler) ListCertificates(c *gin.Context) {
	params, err := h.certificateListParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	page, pageSize := pagination(params.Page, params.PageSize)

	svcParams := serviceParams(params)
	svcParams.Limit = uint64(pageSize)
	svcParams.Offset = uint64((page - 1) * pageSize)

	result, err := h.certSrv.List(c.Request.Context(), svcParams)
	if err != nil {
		h.writeError(c, "failed to list certificates", err)
		return
	}

	apiCerts := make([]v1.Certificate, 0, len(result.Certificates))
	for _, cert := range result.Certificates {
		apiCerts = append(apiCerts, v1.NewCertificateFromModel(cert))
	}
	c.JSON(http.StatusOK, v1.CertificateListResponse{
		Page:         page,
		PageCount:    pageCount(result.Total, pageSize),
		Total:        result.Total,
		Certificates: apiCerts,
	})
}

// (POST /certificates)
func (h *Handler) CreateCertificate(c *gin.Context) {
	var body v1.CertificateInput
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.badRequest(c, err)
		return
	}
	cert, err := h.certSrv.Create(c.Request.Context(), body.Row())
	if err != nil {
		h.writeError(c, "failed to create certificate", err)
		return
	}
	c.JSON(http.StatusCreated, v1.NewCertificateFromModel(cert))
}

// (GET /certificates/{id})
func (h *Handler) GetCertificate(c *gin.Context) {
	cert, err := h.certSrv.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get certificate", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewCertificateFromModel(cert))
}

// (PATCH /certificates/{id})
func (h *Handler) UpdateCertificate(c *gin.Context) {
	var body v1.CertificateInput
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.badRequest(c, err)
		return
	}
	cert, err := h.certSrv.Update(c.Request.Context(), c.Param("id"), body.Row())
	if err != nil {
		h.writeError(c, "failed to update certificate", err)
		return
	}
	c.JSON(http.StatusOK, v1.NewCertificateFromModel(cert))
}

// (DELETE /certificates/{id})
func (h *Handler) DeleteCertificate(c *gin.Context) {
	if err := h.certSrv.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "failed to delete certificate", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportCertificates streams the certificate register as xlsx.
// (GET /certificates/export)
func (h *Handler) ExportCertificates(c *gin.Context) {
	params, err := h.certificateListParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.exportSrv.Certificates(c.Request.Context(), &buf, serviceParams(params)); err != nil {
		h.writeError(c, "failed to export certificates", err)
		return
	}

	filename := fmt.Sprintf("certificates-%s.xlsx", time.Now().UTC().Format(time.DateOnly))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
