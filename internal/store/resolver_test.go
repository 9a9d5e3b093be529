package store_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

type fakeCatalog struct {
	tables []string
	err    error
	calls  int
}

func (f *fakeCatalog) Tables(_ context.Context, candidates []string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var found []string
	for _, c := range candidates {
		for _, t := range f.tables {
			if c == t {
				found = append(found, c)
			}
		}
	}
	return found, nil
}

// slowCatalog blocks work order lookups until release is closed.
type slowCatalog struct {
	entered chan struct{}
	release chan struct{}
}

func (s *slowCatalog) Tables(_ context.Context, candidates []string) ([]string, error) {
	if candidates[0] == "work_orders" {
		close(s.entered)
		<-s.release
		return candidates[:1], nil
	}
	return []string{"compressors_records"}, nil
}

var _ = Describe("TableResolver", func() {
	var (
		ctx        context.Context
		catalog    *fakeCatalog
		resolver   *store.TableResolver
		compressor models.LogicalEntity
	)

	BeforeEach(func() {
		ctx = context.Background()
		catalog = &fakeCatalog{}
		resolver = store.NewTableResolver(catalog)
		compressor, _ = store.LookupEntity(store.EntityCompressorRecord)
	})

	// Given both the historic and the renamed compressor table
	// When the entity is resolved repeatedly
	// Then the preferred table should win every time
	It("should pick the preferred table when both exist", func() {
		// Arrange
		catalog.tables = []string{"compressor_records", "compressors_records"}

		// Act & Assert
		for range 3 {
			resolved, err := resolver.Resolve(ctx, compressor)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.PhysicalName).To(Equal("compressors_records"))
		}
		Expect(catalog.calls).To(Equal(1))
	})

	It("should pick the only existing candidate", func() {
		catalog.tables = []string{"compressor_records"}

		resolved, err := resolver.Resolve(ctx, compressor)

		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.PhysicalName).To(Equal("compressor_records"))
	})

	It("should resolve to none when no candidate exists", func() {
		resolved, err := resolver.Resolve(ctx, compressor)

		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.None()).To(BeTrue())
	})

	It("should fail on several matches without a preference", func() {
		catalog.tables = []string{"a", "b"}
		entity := models.LogicalEntity{LogicalName: "thing", Candidates: []string{"b", "a"}}

		_, err := resolver.Resolve(ctx, entity)

		Expect(srvErrors.IsAmbiguousSchemaError(err)).To(BeTrue())
	})

	// Given a catalog that cannot be read
	// When the entity is resolved
	// Then it should resolve to none and ask again next time
	It("should treat a catalog failure as none without caching it", func() {
		// Arrange
		catalog.err = errors.New("connection refused")

		// Act
		resolved, err := resolver.Resolve(ctx, compressor)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.None()).To(BeTrue())

		catalog.err = nil
		catalog.tables = []string{"compressors_records"}
		resolved, err = resolver.Resolve(ctx, compressor)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.PhysicalName).To(Equal("compressors_records"))
		Expect(catalog.calls).To(Equal(2))
	})

	It("should ask the catalog again after Invalidate", func() {
		_, err := resolver.Resolve(ctx, compressor)
		Expect(err).NotTo(HaveOccurred())

		catalog.tables = []string{"compressor_records"}
		resolver.Invalidate()
		resolved, err := resolver.Resolve(ctx, compressor)

		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.PhysicalName).To(Equal("compressor_records"))
	})

	// Given a catalog lookup that hangs for one entity
	// When another entity is resolved meanwhile
	// Then it should not wait for the hung lookup
	It("should not serialize resolutions behind a slow catalog", func() {
		// Arrange
		slow := &slowCatalog{entered: make(chan struct{}), release: make(chan struct{})}
		DeferCleanup(func() { close(slow.release) })
		r := store.NewTableResolver(slow)
		workOrder, _ := store.LookupEntity(store.EntityWorkOrder)
		go func() {
			defer GinkgoRecover()
			_, _ = r.Resolve(ctx, workOrder)
		}()
		Eventually(slow.entered).Should(BeClosed())

		// Act
		done := make(chan string, 1)
		go func() {
			defer GinkgoRecover()
			resolved, err := r.Resolve(ctx, compressor)
			Expect(err).NotTo(HaveOccurred())
			done <- resolved.PhysicalName
		}()

		// Assert
		Eventually(done).Should(Receive(Equal("compressors_records")))
	})

	It("should read the catalog of a migrated database", func() {
		d := newSQLDriver(ctx, store.DuckDB)
		defer d.Close()

		resolved, err := store.NewTableResolver(d).Resolve(ctx, compressor)

		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.PhysicalName).To(Equal("compressors_records"))
	})
})
