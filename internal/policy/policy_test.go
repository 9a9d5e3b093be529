package policy_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/policy"
)

var _ = Describe("DeriveStatus", func() {
	today := time.Date(2026, time.October, 18, 15, 30, 0, 0, time.UTC)

	// Given any service date
	// When the status is derived
	// Then the retest date is exactly 364 days later, whatever override is supplied
	DescribeTable("retest date is always service date + 364 days",
		func(service time.Time) {
			override := service.AddDate(5, 0, 0)

			derived := policy.DeriveStatus(service, &override, today)
			plain := policy.DeriveStatus(service, nil, today)

			expected := policy.Day(service).AddDate(0, 0, 364)
			Expect(derived.RetestDate).To(Equal(expected))
			Expect(plain.RetestDate).To(Equal(expected))
		},
		Entry("start of year", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)),
		Entry("leap day", time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)),
		Entry("late evening", time.Date(2026, time.March, 3, 23, 59, 59, 0, time.UTC)),
		Entry("far future", time.Date(2031, time.July, 14, 0, 0, 0, 0, time.UTC)),
	)

	DescribeTable("status boundaries",
		func(retestOffsetDays int, expected models.CertificateStatus) {
			service := policy.Day(today).AddDate(0, 0, retestOffsetDays-364)

			Expect(policy.DeriveStatus(service, nil, today).Status).To(Equal(expected))
		},
		Entry("retest yesterday", -1, models.CertificateStatusExpired),
		Entry("retest today", 0, models.CertificateStatusExpired),
		Entry("retest tomorrow", 1, models.CertificateStatusUpcoming),
		Entry("retest in 30 days", 30, models.CertificateStatusUpcoming),
		Entry("retest in 31 days", 31, models.CertificateStatusValid),
		Entry("retest in a year", 364, models.CertificateStatusValid),
	)

	Context("ParseDate", func() {
		It("should accept ISO dates and timestamps", func() {
			d, ok := policy.ParseDate("2026-01-02")
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)))

			d, ok = policy.ParseDate("2026-01-02T10:00:00Z")
			Expect(ok).To(BeTrue())
			Expect(policy.Day(d)).To(Equal(time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)))
		})

		It("should reject garbage", func() {
			_, ok := policy.ParseDate("next tuesday")
			Expect(ok).To(BeFalse())

			_, ok = policy.ParseDate(42)
			Expect(ok).To(BeFalse())
		})
	})
})
