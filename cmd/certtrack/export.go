package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
)

var (
	exportOutput   string
	exportCompany  string
	exportStatuses []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the certificate register to an xlsx file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		params := services.CertificateListParams{CompanyID: exportCompany}
		for _, s := range exportStatuses {
			params.Statuses = append(params.Statuses, models.CertificateStatus(s))
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		n, err := services.NewExportService(services.NewCertificateService(st)).Certificates(cmd.Context(), f, params)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d certificates to %s\n", n, exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "certificates.xlsx", "output file")
	exportCmd.Flags().StringVar(&exportCompany, "company", "", "only certificates of this company id")
	exportCmd.Flags().StringSliceVar(&exportStatuses, "status", nil, "only these statuses: valid, upcoming, expired")
}
