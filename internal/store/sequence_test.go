package store_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
	"github.com/bwservicing/certtrack/test"
)

func certificate(number string) models.Row {
	return models.Row{"certificate_number": number, "company_id": "c-1", "service_date": "2026-01-15"}
}

var _ = Describe("SequenceGenerator", func() {
	var (
		ctx context.Context
		s   *store.Store
		ns  store.Namespace
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newStore(newSQLDriver(ctx, store.DuckDB))
		ns = store.CertificateNamespace
	})

	AfterEach(func() {
		s.Close()
	})

	Context("Next", func() {
		It("should start at the floor", func() {
			n, err := s.Sequences().Next(ctx, s.Adapter(), ns)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal("BWS-1000"))
		})

		It("should follow the most recently inserted number", func() {
			for _, number := range []string{"BWS-1041", "BWS-1007"} {
				_, err := s.Adapter().Insert(ctx, store.EntityCertificate, certificate(number))
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := s.Sequences().Next(ctx, s.Adapter(), ns)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal("BWS-1008"))
		})

		It("should restart at the floor when the last number is malformed", func() {
			_, err := s.Adapter().Insert(ctx, store.EntityCertificate, certificate("legacy-17"))
			Expect(err).NotTo(HaveOccurred())

			n, err := s.Sequences().Next(ctx, s.Adapter(), ns)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal("BWS-1000"))
		})

		It("should never go below the floor", func() {
			_, err := s.Adapter().Insert(ctx, store.EntityCertificate, certificate("BWS-12"))
			Expect(err).NotTo(HaveOccurred())

			n, err := s.Sequences().Next(ctx, s.Adapter(), ns)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal("BWS-1000"))
		})

		// Given two callers that read before either inserts
		// When both compute the next number
		// Then they should get the same number
		It("should hand out duplicates when reads interleave", func() {
			// Act
			first, err := s.Sequences().Next(ctx, s.Adapter(), ns)
			Expect(err).NotTo(HaveOccurred())
			second, err := s.Sequences().Next(ctx, s.Adapter(), ns)
			Expect(err).NotTo(HaveOccurred())

			// Assert
			Expect(first).To(Equal(second))

			_, err = s.Adapter().Insert(ctx, store.EntityCertificate, certificate(first))
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Adapter().Insert(ctx, store.EntityCertificate, certificate(second))
			Expect(srvErrors.IsConflictError(err)).To(BeTrue())
		})
	})

	Context("Claim", func() {
		It("should require a transaction", func() {
			_, err := s.Sequences().Claim(ctx, s.Adapter(), ns)

			Expect(err).To(HaveOccurred())
		})

		It("should format with the namespace prefix", func() {
			Expect(store.Format(store.WorkOrderNamespace, 1234)).To(Equal("WO-1234"))
		})
	})

	DescribeTable("concurrent claims",
		func(open func() (store.Driver, func())) {
			// Arrange
			driver, cleanup := open()
			defer cleanup()
			st := store.NewStore(driver, store.WithWriterOptions(store.WithMaxAttempts(10)))
			Expect(st.Warm(ctx)).To(Succeed())

			const workers = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				numbers []string
				errs    []error
			)

			// Act
			for range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					row, err := st.Writer().CreateNumbered(ctx, store.EntityCertificate, ns,
						models.Row{"company_id": "c-1", "service_date": "2026-01-15"})
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						errs = append(errs, err)
						return
					}
					numbers = append(numbers, row.String("certificate_number"))
				}()
			}
			wg.Wait()

			// Assert
			Expect(errs).To(BeEmpty())
			Expect(numbers).To(HaveLen(workers))
			Expect(numbers).To(ConsistOf(
				"BWS-1000", "BWS-1001", "BWS-1002", "BWS-1003",
				"BWS-1004", "BWS-1005", "BWS-1006", "BWS-1007",
			))
		},
		Entry("duckdb", func() (store.Driver, func()) {
			d := newSQLDriver(context.Background(), store.DuckDB)
			return d, func() { d.Close() }
		}),
		Entry("sqlite", func() (store.Driver, func()) {
			d := newSQLDriver(context.Background(), store.SQLite)
			return d, func() { d.Close() }
		}),
		Entry("rest", func() (store.Driver, func()) {
			fake := test.NewFakePostgREST(restTables...)
			fake.Unique("certificates", "certificate_number")
			return newRESTDriver(fake), fake.Close
		}),
	)
})
