package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var matchSolicitationID int64

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Generate and print ranked matches for a solicitation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if matchSolicitationID == 0 {
			return eris.New("--solicitation is required")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.Matcher.Generate(cmd.Context(), matchSolicitationID)
		if err != nil {
			return err
		}
		results, err = e.Matcher.Hydrate(cmd.Context(), results)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tORGANIZATION\tSCORE\tOVERLAP\tDISTANCE\tNEED\tLLM")
		for i, m := range results {
			name := fmt.Sprintf("org %d", m.OrganizationID)
			if m.Organization != nil {
				name = m.Organization.Name
			}
			fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%.1f mi\t%.1f\t%.1f\n",
				i+1, name, m.Score, m.CapabilityOverlap, m.DistanceMiles,
				m.NeedScoreComponent, m.LLMScore)
		}
		return w.Flush()
	},
}

func init() {
	matchCmd.Flags().Int64Var(&matchSolicitationID, "solicitation", 0, "solicitation id to match")
	rootCmd.AddCommand(matchCmd)
}
