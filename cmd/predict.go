package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var predictLimit int

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the food-insecurity risk model over all monitored ZIPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		preds, err := e.Predict.Predict(cmd.Context())
		if err != nil {
			return err
		}
		if predictLimit > 0 && len(preds) > predictLimit {
			preds = preds[:predictLimit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ZIP\tCITY\tSTATE\tRISK\tSEVERITY\t30D\tCOVERAGE\tDISASTERS")
		for _, p := range preds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%.1f%%\t%s\t%s\n",
				p.ZipCode, p.City, p.State, p.CompositeRisk, p.Severity,
				p.Probability30Days, p.CoverageStatus,
				strings.Join(p.DisasterTypes, ", "))
		}
		return w.Flush()
	},
}

func init() {
	predictCmd.Flags().IntVar(&predictLimit, "limit", 0, "print at most this many zones (0 = all)")
	rootCmd.AddCommand(predictCmd)
}
