package services_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

var _ = Describe("RecordService", func() {
	var (
		ctx context.Context
		srv *services.RecordService
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = services.NewRecordService(newStore(ctx))
	})

	Context("CRUD", func() {
		// Given a company created through the service
		// When it is read, updated and deleted
		// Then every step should see the previous one
		It("should create, get, update and delete", func() {
			// Arrange
			created, err := srv.Create(ctx, store.EntityCompany, models.Row{"name": "Acme Air"})
			Expect(err).NotTo(HaveOccurred())
			id := created.ID()

			// Act
			got, err := srv.Get(ctx, store.EntityCompany, id)
			Expect(err).NotTo(HaveOccurred())
			updated, err := srv.Update(ctx, store.EntityCompany, id, models.Row{"email": "ops@acme.test"})
			Expect(err).NotTo(HaveOccurred())
			delErr := srv.Delete(ctx, store.EntityCompany, id)

			// Assert
			Expect(got.String("name")).To(Equal("Acme Air"))
			Expect(updated.String("email")).To(Equal("ops@acme.test"))
			Expect(delErr).NotTo(HaveOccurred())
			_, err = srv.Get(ctx, store.EntityCompany, id)
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		It("should report a missing row on update", func() {
			_, err := srv.Update(ctx, store.EntityCompany, "missing", models.Row{"name": "x"})
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		// Given a row that never existed
		// When it is deleted, twice
		// Then both deletes should succeed so a retry is harmless
		It("should treat deleting a missing row as success", func() {
			Expect(srv.Delete(ctx, store.EntityCompany, "never-existed")).To(Succeed())
			Expect(srv.Delete(ctx, store.EntityCompany, "never-existed")).To(Succeed())
		})
	})

	Context("List", func() {
		BeforeEach(func() {
			for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
				_, err := srv.Create(ctx, store.EntityCompany, models.Row{"name": name})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should sort, paginate and count without pagination", func() {
			sort, err := services.ParseSort([]string{"name:desc"})
			Expect(err).NotTo(HaveOccurred())

			result, err := srv.List(ctx, store.EntityCompany, services.ListParams{Sort: sort, Limit: 2})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Total).To(Equal(3))
			Expect(result.Rows).To(HaveLen(2))
			Expect(result.Rows[0].String("name")).To(Equal("Charlie"))
			Expect(result.Rows[1].String("name")).To(Equal("Bravo"))
		})

		It("should filter by equality", func() {
			result, err := srv.List(ctx, store.EntityCompany, services.ListParams{Filters: models.Filters{"name": "Alpha"}})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Total).To(Equal(1))
			Expect(result.Rows[0].String("name")).To(Equal("Alpha"))
		})
	})

	Context("ParseSort", func() {
		It("should accept several terms and default to ascending", func() {
			order, err := services.ParseSort([]string{"name, created_at:DESC"})

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]models.OrderBy{
				{Column: "name", Direction: models.SortAsc},
				{Column: "created_at", Direction: models.SortDesc},
			}))
		})

		It("should reject an unknown direction", func() {
			_, err := services.ParseSort([]string{"name:sideways"})

			Expect(srvErrors.IsValidationError(err)).To(BeTrue())
		})
	})

	It("should map collections to entities", func() {
		e, ok := services.RecordEntity("compressor-records")
		Expect(ok).To(BeTrue())
		Expect(e).To(Equal(store.EntityCompressorRecord))

		_, ok = services.RecordEntity("work-orders")
		Expect(ok).To(BeFalse())
	})
})
