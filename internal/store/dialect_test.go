package store

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dialect paginate", func() {
	DescribeTable("renders LIMIT before OFFSET",
		func(d Dialect, limit, offset uint64, want string) {
			// Act
			query, _, err := d.paginate(d.builder().Select("*").From("companies"), limit, offset).ToSql()

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(HaveSuffix(want))
		},
		Entry("sqlite offset only", SQLite, uint64(0), uint64(3), "LIMIT 9223372036854775807 OFFSET 3"),
		Entry("sqlite both", SQLite, uint64(2), uint64(3), "LIMIT 2 OFFSET 3"),
		Entry("duckdb offset only", DuckDB, uint64(0), uint64(3), "FROM companies OFFSET 3"),
	)
})
