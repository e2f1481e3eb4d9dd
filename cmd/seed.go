package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/model"
)

var seedFile string

// seedData is the shape of the JSON seed document.
type seedData struct {
	ZipScores     []model.ZipNeedScore      `json:"zip_scores"`
	Organizations []model.Organization      `json:"organizations"`
	Solicitations []model.Solicitation      `json:"solicitations"`
	Capacity      []model.EmergencyCapacity `json:"capacity"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference data from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return eris.Wrap(err, "seed: read file")
		}
		var data seedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return eris.Wrap(err, "seed: parse file")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.Migrate(ctx); err != nil {
			return err
		}

		for i := range data.ZipScores {
			if err := e.Store.UpsertZipNeedScore(ctx, &data.ZipScores[i]); err != nil {
				return eris.Wrapf(err, "seed: zip %s", data.ZipScores[i].ZipCode)
			}
		}
		orgIDs := make(map[string]int64, len(data.Organizations))
		for i := range data.Organizations {
			org, err := e.Store.CreateOrganization(ctx, &data.Organizations[i])
			if err != nil {
				return eris.Wrapf(err, "seed: organization %s", data.Organizations[i].Name)
			}
			orgIDs[org.Name] = org.ID
		}
		for i := range data.Solicitations {
			sol := &data.Solicitations[i]
			if err := sol.Validate(); err != nil {
				return eris.Wrapf(err, "seed: solicitation %s", sol.Title)
			}
			if _, err := e.Store.CreateSolicitation(ctx, sol); err != nil {
				return eris.Wrapf(err, "seed: solicitation %s", sol.Title)
			}
		}
		for i := range data.Capacity {
			c := &data.Capacity[i]
			if err := c.Validate(); err != nil {
				return eris.Wrapf(err, "seed: capacity %s", c.ItemName)
			}
			if _, err := e.Store.CreateCapacity(ctx, c); err != nil {
				return eris.Wrapf(err, "seed: capacity %s", c.ItemName)
			}
		}

		zap.L().Info("seed: load complete",
			zap.Int("zip_scores", len(data.ZipScores)),
			zap.Int("organizations", len(data.Organizations)),
			zap.Int("solicitations", len(data.Solicitations)),
			zap.Int("capacity", len(data.Capacity)),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.json", "path to the JSON seed file")
	rootCmd.AddCommand(seedCmd)
}
