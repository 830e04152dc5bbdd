package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/outreach-mate/outreach-cli/internal/emailer"
	"github.com/outreach-mate/outreach-cli/internal/model"
)

var (
	emailProspectID string
	emailContactID  string
	emailProvider   string
	emailAll        bool
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Generate and send outreach emails",
}

var emailGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an email draft for a prospect or contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, svc, err := initEmailer(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if emailAll {
			drafts, err := svc.DraftAll(ctx, emailProspectID)
			if err != nil {
				return err
			}
			return enc.Encode(drafts)
		}

		draft, err := svc.Draft(ctx, emailProspectID, emailContactID)
		if err != nil {
			return err
		}
		return enc.Encode(draft)
	},
}

var emailSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the stored draft for a prospect or contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, svc, err := initEmailer(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		provider := emailProvider
		if provider == "" {
			provider = cfg.Email.Provider
		}

		entry, err := svc.Send(ctx, emailer.SendRequest{
			ProspectID: emailProspectID,
			ContactID:  emailContactID,
			Provider:   model.EmailProvider(provider),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

func init() {
	for _, c := range []*cobra.Command{emailGenCmd, emailSendCmd} {
		c.Flags().StringVar(&emailProspectID, "prospect", "", "prospect ID (required)")
		c.Flags().StringVar(&emailContactID, "contact", "", "contact ID (omit for a company-level email)")
		_ = c.MarkFlagRequired("prospect")
	}
	emailGenCmd.Flags().BoolVar(&emailAll, "all", false, "generate the company draft plus one per contact")
	emailSendCmd.Flags().StringVar(&emailProvider, "provider", "", "gmail or outlook (default from config)")
	emailCmd.AddCommand(emailGenCmd, emailSendCmd)
	rootCmd.AddCommand(emailCmd)
}
