package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

var _ = DescribeTable("statusOf",
	func(err error, status int) {
		Expect(statusOf(err)).To(Equal(status))
	},
	Entry("not found", srvErrors.NewNotFoundError("certificate", "x"), http.StatusNotFound),
	Entry("wrapped not found", fmt.Errorf("get: %w", srvErrors.NewNotFoundError("certificate", "x")), http.StatusNotFound),
	Entry("validation", srvErrors.NewValidationError("name", "required"), http.StatusBadRequest),
	Entry("parse", srvErrors.NewParseError("JOIN", 0, ""), http.StatusBadRequest),
	Entry("conflict", srvErrors.NewConflictError("duplicate", nil), http.StatusConflict),
	Entry("unavailable", srvErrors.NewBackendUnavailableError("rest", errors.New("refused")), http.StatusServiceUnavailable),
	Entry("ambiguous", srvErrors.NewAmbiguousSchemaError("work_order", []string{"a", "b"}), http.StatusInternalServerError),
	Entry("cancelled", context.Canceled, 499),
	Entry("other", errors.New("boom"), http.StatusInternalServerError),
)

var _ = Describe("pagination", func() {
	It("should default and cap the page size", func() {
		zero, big := 0, 500

		page, size := pagination(nil, nil)
		Expect(page).To(Equal(1))
		Expect(size).To(Equal(defaultPageSize))

		page, size = pagination(&zero, &big)
		Expect(page).To(Equal(1))
		Expect(size).To(Equal(maxPageSize))

		Expect(pageCount(0, 20)).To(Equal(1))
		Expect(pageCount(41, 20)).To(Equal(3))
	})
})
