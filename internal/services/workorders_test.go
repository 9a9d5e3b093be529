package services_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/pkg/scheduler"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

var _ = Describe("WorkOrderService", func() {
	var (
		ctx       context.Context
		st        *store.Store
		sched     *scheduler.Scheduler
		srv       *services.WorkOrderService
		companyID string
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = newStore(ctx)
		sched = scheduler.NewScheduler(2)
		DeferCleanup(sched.Close)
		srv = services.NewWorkOrderService(st, sched)

		company, err := services.NewRecordService(st).Create(ctx, store.EntityCompany, models.Row{"name": "Acme Air"})
		Expect(err).NotTo(HaveOccurred())
		companyID = company.ID()
	})

	// Given a work order with two items and client totals
	// When it is created through the scheduler
	// Then the totals should come from the stored items
	It("should create a work order with recomputed totals", func() {
		wo, err := srv.Create(ctx,
			models.Row{"company_id": companyID, "total": 1, "vat": 1},
			[]models.Row{
				{"description": "Compressor service", "quantity": 2, "unit_price": 150},
				{"description": "Valve", "unit_price": 200},
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(wo.Number).To(Equal("WO-1000"))
		Expect(wo.Items).To(HaveLen(2))
		Expect(wo.Total).To(Equal(500.0))
		Expect(wo.VAT).To(Equal(100.0))
		Expect(wo.Status).To(Equal("open"))
	})

	It("should add and remove items", func() {
		wo, err := srv.Create(ctx, models.Row{"company_id": companyID},
			[]models.Row{{"description": "Valve", "unit_price": 200}})
		Expect(err).NotTo(HaveOccurred())

		wo, err = srv.AddItems(ctx, wo.ID, []models.Row{{"description": "Hose", "unit_price": 50}})
		Expect(err).NotTo(HaveOccurred())
		Expect(wo.Total).To(Equal(250.0))

		wo, err = srv.RemoveItem(ctx, wo.ID, wo.Items[0].ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(wo.Items).To(HaveLen(1))
		Expect(wo.Total).To(Equal(50.0))
		Expect(wo.VAT).To(Equal(10.0))
	})

	It("should leave nothing behind when the caller has already gone", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := srv.Create(cancelled, models.Row{"company_id": companyID},
			[]models.Row{{"description": "Valve", "unit_price": 200}})

		Expect(err).To(HaveOccurred())
		list, err := srv.List(ctx, services.WorkOrderListParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(list.Total).To(Equal(0))
	})

	It("should list newest first", func() {
		for range 3 {
			_, err := srv.Create(ctx, models.Row{"company_id": companyID}, nil)
			Expect(err).NotTo(HaveOccurred())
		}

		list, err := srv.List(ctx, services.WorkOrderListParams{CompanyID: companyID, Limit: 2})

		Expect(err).NotTo(HaveOccurred())
		Expect(list.Total).To(Equal(3))
		Expect(list.WorkOrders[0].Number).To(Equal("WO-1002"))
		Expect(list.WorkOrders[1].Number).To(Equal("WO-1001"))
	})

	It("should report a missing work order", func() {
		_, err := srv.Get(ctx, "missing")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())

		_, err = srv.AddItems(ctx, "missing", []models.Row{{"description": "Hose", "unit_price": 50}})
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})
})
