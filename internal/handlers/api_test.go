package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/config"
	"github.com/bwservicing/certtrack/internal/handlers"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/pkg/scheduler"
)

var _ = Describe("API", func() {
	var (
		router    *gin.Engine
		companyID string
	)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder, into any) {
		Expect(json.Unmarshal(w.Body.Bytes(), into)).To(Succeed(), w.Body.String())
	}

	BeforeEach(func() {
		ctx := context.Background()
		st, err := store.Open(ctx, config.NewConfigurationWithOptionsAndDefaults(), nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)
		sched := scheduler.NewScheduler(2)
		DeferCleanup(sched.Close)

		certs := services.NewCertificateService(st)
		h := handlers.New(
			services.NewRecordService(st),
			certs,
			services.NewWorkOrderService(st, sched),
			services.NewExportService(certs),
			services.NewSQLService(st),
		)
		router = gin.New()
		h.Register(router.Group("/api/v1"))

		w := do(http.MethodPost, "/api/v1/records/companies", map[string]any{"name": "Acme Air"})
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		var company v1.Record
		decode(w, &company)
		companyID = company["id"].(string)
	})

	Context("records", func() {
		It("should list with filters and sorting", func() {
			Expect(do(http.MethodPost, "/api/v1/records/companies", map[string]any{"name": "Zeta"}).Code).To(Equal(http.StatusCreated))

			w := do(http.MethodGet, "/api/v1/records/companies?sort=name:desc&pageSize=1", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.RecordListResponse
			decode(w, &resp)
			Expect(resp.Total).To(Equal(2))
			Expect(resp.PageCount).To(Equal(2))
			Expect(resp.Items).To(HaveLen(1))
			Expect(resp.Items[0]["name"]).To(Equal("Zeta"))
		})

		It("should answer 404 for a missing record and an unknown collection", func() {
			Expect(do(http.MethodGet, "/api/v1/records/companies/missing", nil).Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/api/v1/records/invoices", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("should answer 400 for a filter on an unknown column", func() {
			w := do(http.MethodGet, "/api/v1/records/companies?password=x", nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should update and delete", func() {
			w := do(http.MethodPatch, "/api/v1/records/companies/"+companyID, map[string]any{"phone": "0161 000"})
			Expect(w.Code).To(Equal(http.StatusOK))

			Expect(do(http.MethodDelete, "/api/v1/records/companies/"+companyID, nil).Code).To(Equal(http.StatusNoContent))
			// a retried delete is still a success
			Expect(do(http.MethodDelete, "/api/v1/records/companies/"+companyID, nil).Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodGet, "/api/v1/records/companies/"+companyID, nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("certificates", func() {
		// Given a certificate created over HTTP
		// When it is read back
		// Then it should carry a server number and derived dates
		It("should create and get a certificate", func() {
			w := do(http.MethodPost, "/api/v1/certificates", map[string]any{
				"companyId":   companyID,
				"serviceDate": "2026-01-01",
			})
			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
			var created v1.Certificate
			decode(w, &created)

			w = do(http.MethodGet, "/api/v1/certificates/"+created.Id, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var got v1.Certificate
			decode(w, &got)
			Expect(got.CertificateNumber).To(Equal("BWS-1000"))
			Expect(got.RetestDate.Format(time.DateOnly)).To(Equal("2026-12-31"))
		})

		It("should reject a malformed status filter value", func() {
			w := do(http.MethodGet, "/api/v1/certificates?status=lapsed", nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should export the register", func() {
			w := do(http.MethodGet, "/api/v1/certificates/export", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
			Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring("certificates-"))
		})
	})

	Context("work orders", func() {
		It("should create a work order and compute totals", func() {
			w := do(http.MethodPost, "/api/v1/work-orders", map[string]any{
				"companyId": companyID,
				"items": []map[string]any{
					{"description": "Service", "quantity": 2, "unitPrice": 150},
					{"description": "Valve", "unitPrice": 200},
				},
			})

			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
			var wo v1.WorkOrder
			decode(w, &wo)
			Expect(wo.Number).To(Equal("WO-1000"))
			Expect(wo.Total).To(Equal(500.0))
			Expect(wo.Vat).To(Equal(100.0))
		})

		It("should reject an item without a price", func() {
			w := do(http.MethodPost, "/api/v1/work-orders", map[string]any{
				"companyId": companyID,
				"items":     []map[string]any{{"description": "Valve"}},
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer 404 when adding items to a missing work order", func() {
			w := do(http.MethodPost, "/api/v1/work-orders/missing/items", map[string]any{
				"items": []map[string]any{{"description": "Valve", "unitPrice": 10}},
			})

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("sql", func() {
		It("should run a supported statement", func() {
			w := do(http.MethodPost, "/api/v1/sql", map[string]any{
				"sql":    "SELECT name FROM companies WHERE id = $1",
				"params": []any{companyID},
			})

			Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
			var resp v1.SQLResponse
			decode(w, &resp)
			Expect(resp.Rows).To(Equal([]v1.Record{{"name": "Acme Air"}}))
		})

		It("should name the rejected construct", func() {
			w := do(http.MethodPost, "/api/v1/sql", map[string]any{
				"sql": "SELECT * FROM companies JOIN contacts ON company_id = id",
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			var resp v1.Error
			decode(w, &resp)
			Expect(resp.Error).To(ContainSubstring("JOIN"))
		})
	})
})
