package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/score"
	"github.com/zulandar/vinyard/internal/store"
)

func newListingsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Print active listings ranked by desirability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DataDir, engine, logger.Discard())
			if err != nil {
				return err
			}
			listings, err := st.AllActive()
			if err != nil {
				return err
			}
			if len(listings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active listings")
				return nil
			}

			scorer := score.NewScorer(scoreWeights(cfg))
			scores := scorer.Scores(listings)
			sort.Slice(listings, func(i, j int) bool {
				return scores[listings[i].ID] > scores[listings[j].ID]
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tVIN\tYEAR\tPRICE\tMILEAGE\tTITLE")
			for _, l := range listings {
				fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\t%s\t%s\n",
					scores[l.ID], l.Data.VIN, l.Data.Year, l.Data.Price, l.Data.Mileage, l.Data.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}
