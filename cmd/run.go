package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

var (
	runName     string
	runWebsite  string
	runLinkedIn string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enrichment for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		company := model.Company{
			Name:        runName,
			WebsiteURL:  runWebsite,
			LinkedInURL: runLinkedIn,
		}

		result, err := env.Pipeline.Run(ctx, company)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment complete",
			zap.String("company", company.Name),
			zap.String("prospect_id", result.ProspectID),
			zap.String("outcome", string(result.Outcome)),
			zap.Int("score", result.DataQualityScore),
			zap.Int("contacts", result.ContactCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "company name (required)")
	runCmd.Flags().StringVar(&runWebsite, "website", "", "company website URL")
	runCmd.Flags().StringVar(&runLinkedIn, "linkedin", "", "company LinkedIn URL")
	_ = runCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(runCmd)
}
