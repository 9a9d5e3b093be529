package store_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
	"github.com/bwservicing/certtrack/test"
)

var _ = Describe("RecordWriter", func() {
	var (
		ctx    context.Context
		faulty *test.FaultyDriver
		s      *store.Store
		w      *store.RecordWriter
	)

	workOrder := func() models.Row {
		return models.Row{"company_id": "c-1", "vat_rate": 20, "total": 999999, "vat": 1}
	}
	items := func() []models.Row {
		return []models.Row{
			{"description": "Compressor service", "unit_price": 100},
			{"description": "Valve kit", "quantity": 2, "unit_price": "200.00"},
		}
	}
	countWorkOrders := func() int {
		rows, err := s.Adapter().Query(ctx, models.QueryDescriptor{Table: store.EntityWorkOrder})
		Expect(err).NotTo(HaveOccurred())
		return len(rows)
	}

	BeforeEach(func() {
		ctx = context.Background()
		faulty = test.NewFaultyDriver(newSQLDriver(ctx, store.DuckDB))
		s = newStore(faulty)
		Expect(s.Warm(ctx)).To(Succeed())
		w = s.Writer()
	})

	AfterEach(func() {
		s.Close()
	})

	Context("CreateComposite", func() {
		// Given a work order at 20% VAT with items of 100 and 2 x 200
		// When it is created
		// Then total and vat should come from the persisted items
		It("should compute totals from the items", func() {
			// Act
			rec, err := w.CreateComposite(ctx, workOrder(), items())

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["work_order_number"]).To(Equal("WO-1000"))
			Expect(rec.Parent["total"]).To(BeNumerically("==", 500))
			Expect(rec.Parent["vat"]).To(BeNumerically("==", 100))
			Expect(rec.Children).To(HaveLen(2))
			Expect(rec.Children[0]["subtotal"]).To(BeNumerically("==", 100))
			Expect(rec.Children[1]["subtotal"]).To(BeNumerically("==", 400))
			Expect(rec.Children[1]["work_order_id"]).To(Equal(rec.Parent.ID()))
		})

		It("should number work orders in sequence", func() {
			first, err := w.CreateComposite(ctx, workOrder(), nil)
			Expect(err).NotTo(HaveOccurred())
			second, err := w.CreateComposite(ctx, workOrder(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Parent["work_order_number"]).To(Equal("WO-1000"))
			Expect(second.Parent["work_order_number"]).To(Equal("WO-1001"))
			Expect(second.Parent["total"]).To(BeNumerically("==", 0))
		})

		It("should use the default VAT rate when none is given", func() {
			rec, err := w.CreateComposite(ctx, models.Row{"company_id": "c-1"}, []models.Row{{"description": "x", "unit_price": 50}})

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["vat_rate"]).To(BeNumerically("==", 20))
			Expect(rec.Parent["vat"]).To(BeNumerically("==", 10))
		})

		It("should round money to two decimals", func() {
			rec, err := w.CreateComposite(ctx, models.Row{"company_id": "c-1", "vat_rate": 17.5},
				[]models.Row{{"description": "x", "quantity": 3, "unit_price": "0.10"}})

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["total"]).To(BeNumerically("~", 0.30, 1e-9))
			Expect(rec.Parent["vat"]).To(BeNumerically("~", 0.05, 1e-9))
		})

		It("should reject an item without a unit price", func() {
			_, err := w.CreateComposite(ctx, workOrder(), []models.Row{{"description": "free lunch"}})

			var we *store.WriteError
			Expect(errors.As(err, &we)).To(BeTrue())
			Expect(we.Step).To(Equal("child[0]"))
			Expect(srvErrors.IsValidationError(err)).To(BeTrue())
			Expect(countWorkOrders()).To(Equal(0))
		})

		// Given a storage failure on the second item
		// When the work order is created
		// Then nothing should be persisted and the error should name the step
		It("should roll back when an item insert fails", func() {
			// Arrange
			faulty.FailInsert("work_order_items", 1, errors.New("disk on fire: /var/lib/db"))

			// Act
			_, err := w.CreateComposite(ctx, workOrder(), items())

			// Assert
			var we *store.WriteError
			Expect(errors.As(err, &we)).To(BeTrue())
			Expect(we.Step).To(Equal("child[1]"))
			Expect(err.Error()).To(ContainSubstring("child[1]"))
			Expect(err.Error()).NotTo(ContainSubstring("disk on fire"))
			Expect(faulty.Rollbacks).To(Equal(1))
			Expect(countWorkOrders()).To(Equal(0))

			// a retry succeeds without leaving a duplicate parent
			rec, err := w.CreateComposite(ctx, workOrder(), items())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["work_order_number"]).To(Equal("WO-1000"))
			Expect(countWorkOrders()).To(Equal(1))
		})

		It("should retry the whole transaction on a conflict", func() {
			faulty.FailInsert("work_order_items", 0, srvErrors.NewConflictError("concurrent transaction", nil))

			rec, err := w.CreateComposite(ctx, workOrder(), items())

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["total"]).To(BeNumerically("==", 500))
			Expect(faulty.Begins).To(Equal(2))
			Expect(countWorkOrders()).To(Equal(1))
		})

		It("should roll back when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := w.CreateComposite(cancelled, workOrder(), items())

			Expect(err).To(HaveOccurred())
			Expect(countWorkOrders()).To(Equal(0))
		})
	})

	Context("items", func() {
		var rec *models.CompositeRecord

		BeforeEach(func() {
			var err error
			rec, err = w.CreateComposite(ctx, workOrder(), []models.Row{
				{"description": "a", "unit_price": 100},
				{"description": "b", "unit_price": 400},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Parent["total"]).To(BeNumerically("==", 500))
		})

		// Given a work order of 100 + 400 at 20%
		// When the 100 item is removed
		// Then total should be 400 and vat 80
		It("should recompute after removing an item", func() {
			// Act
			updated, err := w.RemoveItem(ctx, rec.Parent.ID(), rec.Children[0].ID())

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Parent["total"]).To(BeNumerically("==", 400))
			Expect(updated.Parent["vat"]).To(BeNumerically("==", 80))
			Expect(updated.Children).To(HaveLen(1))
		})

		It("should treat removing a missing item as done", func() {
			updated, err := w.RemoveItem(ctx, rec.Parent.ID(), "no-such-item")

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Parent["total"]).To(BeNumerically("==", 500))
		})

		It("should recompute after adding items", func() {
			updated, err := w.AddItems(ctx, rec.Parent.ID(), []models.Row{{"description": "c", "unit_price": 250}})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Parent["total"]).To(BeNumerically("==", 750))
			Expect(updated.Parent["vat"]).To(BeNumerically("==", 150))
			Expect(updated.Children).To(HaveLen(3))
		})

		It("should fail to add items to a missing work order", func() {
			_, err := w.AddItems(ctx, "missing", []models.Row{{"description": "c", "unit_price": 1}})

			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		It("should load the work order with its items", func() {
			got, err := w.Get(ctx, rec.Parent.ID())

			Expect(err).NotTo(HaveOccurred())
			Expect(got.Children).To(HaveLen(2))
			Expect(got.Children[0]["description"]).To(Equal("a"))
		})
	})

	It("should run composite writes against the REST backend", func() {
		fake := test.NewFakePostgREST(restTables...)
		defer fake.Close()
		rs := newStore(newRESTDriver(fake))
		Expect(rs.Warm(ctx)).To(Succeed())

		rec, err := rs.Writer().CreateComposite(ctx, workOrder(), items())
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Parent["total"]).To(BeNumerically("==", 500))
		Expect(rec.Parent["vat"]).To(BeNumerically("==", 100))

		// a failed item write is compensated
		fake.FailNext("POST", "work_order_items", 500, "XX000", 1)
		_, err = rs.Writer().CreateComposite(ctx, workOrder(), items())
		Expect(err).To(HaveOccurred())
		Expect(fake.Rows("work_orders")).To(HaveLen(1))
		Expect(fake.Rows("work_order_items")).To(HaveLen(2))
	})
})
