package services_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format(time.DateOnly)
}

var _ = Describe("CertificateService", func() {
	var (
		ctx       context.Context
		st        *store.Store
		srv       *services.CertificateService
		companyID string
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = newStore(ctx)
		srv = services.NewCertificateService(st)

		company, err := services.NewRecordService(st).Create(ctx, store.EntityCompany, models.Row{"name": "Acme Air"})
		Expect(err).NotTo(HaveOccurred())
		companyID = company.ID()
	})

	Context("Create", func() {
		// Given a caller that sends its own number, retest date and status
		// When the certificate is created
		// Then the server-side values should win
		It("should number the certificate and derive its dates", func() {
			cert, err := srv.Create(ctx, models.Row{
				"company_id":         companyID,
				"certificate_number": "BWS-9999",
				"service_date":       "2026-01-01",
				"retest_date":        "2030-01-01",
				"status":             "valid",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(cert.CertificateNumber).To(Equal("BWS-1000"))
			Expect(cert.ServiceDate).To(Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(cert.RetestDate).To(Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
		})

		It("should hand out distinct numbers to concurrent callers", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				numbers []string
			)
			for range 5 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					c, err := srv.Create(ctx, models.Row{"company_id": companyID, "service_date": daysAgo(1)})
					Expect(err).NotTo(HaveOccurred())
					mu.Lock()
					numbers = append(numbers, c.CertificateNumber)
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(numbers).To(ConsistOf("BWS-1000", "BWS-1001", "BWS-1002", "BWS-1003", "BWS-1004"))
		})

		It("should reject a certificate without a service date", func() {
			_, err := srv.Create(ctx, models.Row{"company_id": companyID})

			Expect(srvErrors.IsValidationError(err)).To(BeTrue())
		})
	})

	Context("Update", func() {
		It("should keep the number and recompute the retest date", func() {
			cert, err := srv.Create(ctx, models.Row{"company_id": companyID, "service_date": "2026-01-01"})
			Expect(err).NotTo(HaveOccurred())

			updated, err := srv.Update(ctx, cert.ID, models.Row{"certificate_number": "BWS-1", "service_date": "2026-02-01"})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.CertificateNumber).To(Equal(cert.CertificateNumber))
			Expect(updated.RetestDate).To(Equal(time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)))
		})

		It("should report a missing certificate", func() {
			_, err := srv.Update(ctx, "missing", models.Row{"notes": "x"})

			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})
	})

	Context("Delete", func() {
		It("should succeed for a certificate that is already gone", func() {
			// Arrange
			cert, err := srv.Create(ctx, models.Row{"company_id": companyID, "service_date": daysAgo(1)})
			Expect(err).NotTo(HaveOccurred())

			// Act & Assert
			Expect(srv.Delete(ctx, cert.ID)).To(Succeed())
			Expect(srv.Delete(ctx, cert.ID)).To(Succeed())
			Expect(srv.Delete(ctx, "never-existed")).To(Succeed())
			_, err = srv.Get(ctx, cert.ID)
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})
	})

	Context("List", func() {
		BeforeEach(func() {
			// retest dates fall 36 days ago, in 14 days and in 354 days
			for _, days := range []int{400, 350, 10} {
				_, err := srv.Create(ctx, models.Row{"company_id": companyID, "service_date": daysAgo(days)})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should derive the status on read", func() {
			result, err := srv.List(ctx, services.CertificateListParams{})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Total).To(Equal(3))
			statuses := []models.CertificateStatus{}
			for _, c := range result.Certificates {
				statuses = append(statuses, c.Status)
			}
			Expect(statuses).To(Equal([]models.CertificateStatus{
				models.CertificateStatusExpired,
				models.CertificateStatusUpcoming,
				models.CertificateStatusValid,
			}))
		})

		It("should filter by status before paginating", func() {
			result, err := srv.List(ctx, services.CertificateListParams{
				Statuses: []models.CertificateStatus{models.CertificateStatusUpcoming, models.CertificateStatusValid},
				Limit:    1,
				Offset:   1,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Total).To(Equal(2))
			Expect(result.Certificates).To(HaveLen(1))
			Expect(result.Certificates[0].Status).To(Equal(models.CertificateStatusValid))
		})

		It("should reject an unknown status", func() {
			_, err := srv.List(ctx, services.CertificateListParams{Statuses: []models.CertificateStatus{"lapsed"}})

			Expect(srvErrors.IsValidationError(err)).To(BeTrue())
		})

		It("should export the register", func() {
			var buf bytes.Buffer

			n, err := services.NewExportService(srv).Certificates(ctx, &buf, services.CertificateListParams{CompanyID: companyID})
			Expect(err).NotTo(HaveOccurred())
			register, err := services.ReadRegister(&buf)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
			Expect(register).To(Equal(map[string]models.CertificateStatus{
				"BWS-1000": models.CertificateStatusExpired,
				"BWS-1001": models.CertificateStatusUpcoming,
				"BWS-1002": models.CertificateStatusValid,
			}))
		})
	})
})
