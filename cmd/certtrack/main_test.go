package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bwservicing/certtrack/internal/models"
)

var _ = Describe("CLI", func() {
	Context("configuration", func() {
		BeforeEach(func() {
			envFile = filepath.Join(GinkgoT().TempDir(), "missing.env")
			configFile = ""
		})

		It("should use the defaults when nothing is set", func() {
			cfg, err := loadConfiguration(migrateCmd)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Backend).To(Equal("sql"))
			Expect(cfg.Storage.Dialect).To(Equal("duckdb"))
			Expect(cfg.Sequence.CertificatePrefix).To(Equal("BWS-"))
		})

		It("should read values from a dotenv file", func() {
			envFile = filepath.Join(GinkgoT().TempDir(), ".env")
			Expect(os.WriteFile(envFile, []byte("CERTTRACK_WORK_ORDER_PREFIX=JOB-\n"), 0o600)).To(Succeed())
			DeferCleanup(os.Unsetenv, "CERTTRACK_WORK_ORDER_PREFIX")

			cfg, err := loadConfiguration(migrateCmd)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Sequence.WorkOrderPrefix).To(Equal("JOB-"))
		})

		It("should reject an invalid combination", func() {
			Expect(os.Setenv("CERTTRACK_STORAGE_BACKEND", "rest")).To(Succeed())
			DeferCleanup(os.Unsetenv, "CERTTRACK_STORAGE_BACKEND")

			_, err := loadConfiguration(migrateCmd)

			Expect(err).To(MatchError(ContainSubstring("rest url is required")))
		})
	})

	It("should build loggers for both formats", func() {
		for _, format := range []string{"console", "json"} {
			logger, err := newLogger(format, "debug")
			Expect(err).NotTo(HaveOccurred())
			Expect(logger).NotTo(BeNil())
		}
		_, err := newLogger("json", "loud")
		Expect(err).To(HaveOccurred())
	})

	It("should print rows with a count", func() {
		color.NoColor = true
		var buf bytes.Buffer

		printRows(&buf, []models.Row{{"name": "Acme Air", "vat_number": nil}, {"name": "Zeta"}})

		out := buf.String()
		Expect(out).To(ContainSubstring("name        Acme Air"))
		Expect(out).To(ContainSubstring("vat_number  NULL"))
		Expect(out).To(HaveSuffix("(2 rows)\n"))
	})
})
