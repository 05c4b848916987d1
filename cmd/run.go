package main

import (
	"encoding/json"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

var runRef model.EntityReference

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a single entity reference",
	Example: `  enrich-cli run --domain acme.com
  enrich-cli run --name "Acme Plumbing" --region "Austin, TX"
  enrich-cli run --profile-url https://www.facebook.com/acmeplumbing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ref := runRef.Trimmed()
		if err := ref.Validate(); err != nil {
			return eris.Wrap(err, "run: pass at least one of --domain, --name, --profile-url, --email or --phone")
		}

		env, err := initEnv(ctx, "run", prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer env.Close()

		run := env.enrich(ctx, ref)

		zap.L().Info("enrichment complete",
			zap.String("reference", ref.Label()),
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Float64("confidence", run.Confidence),
		)

		return writeRecord(cmd.OutOrStdout(), run.Record)
	},
}

func writeRecord(w io.Writer, rec *model.ConsolidatedRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runRef.Domain, "domain", "", "website domain, e.g. acme.com")
	f.StringVar(&runRef.Name, "name", "", "business name")
	f.StringVar(&runRef.Region, "region", "", "city/state or region hint for name search")
	f.StringVar(&runRef.Email, "email", "", "contact email address")
	f.StringVar(&runRef.Phone, "phone", "", "contact phone number")
	f.StringVar(&runRef.ProfileURL, "profile-url", "", "social or directory profile URL")
	rootCmd.AddCommand(runCmd)
}
