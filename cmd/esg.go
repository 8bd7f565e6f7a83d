package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/model"
)

var esgCmd = &cobra.Command{
	Use:   "esg",
	Short: "Show the fleet ESG report",
	Long:  "Aggregates the ESG scores of every product visible to the logged-in principal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}

		refine := cfg.ESG.Refine
		if cmd.Flags().Changed("refine") {
			refine, _ = cmd.Flags().GetBool("refine")
		}
		report, err := env.Fleet.Report(ctx, s, refine)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		if len(report.Scores) == 0 {
			fmt.Fprintln(os.Stderr, "No ESG data yet.")
			return nil
		}
		formatReport(os.Stdout, report)
		return nil
	},
}

var esgScoreCmd = &cobra.Command{
	Use:   "score <product-id>",
	Short: "Show one product's ESG score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		score, estimated, err := env.Fleet.Score(ctx, s, args[0])
		if err != nil {
			return err
		}
		formatScore(os.Stdout, score, estimated)
		return nil
	},
}

func init() {
	esgCmd.Flags().Bool("refine", false, "refine distances by geocoding each product's locations")
	esgCmd.Flags().Bool("json", false, "print JSON instead of a table")

	esgCmd.AddCommand(esgScoreCmd)
	rootCmd.AddCommand(esgCmd)
}

// formatReport writes the fleet metrics and per-product scores to out.
func formatReport(out io.Writer, r *esg.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	m := r.Metrics
	_, _ = fmt.Fprintf(w, "Products:\t%d\n", m.TotalProducts)
	_, _ = fmt.Fprintf(w, "Avg score:\t%d (%s)\n", m.AvgScore, r.Label)
	_, _ = fmt.Fprintf(w, "Steps:\t%d (%.1f per product)\n", m.TotalSteps, m.AvgStepsPerProduct)
	_, _ = fmt.Fprintf(w, "CO2 saved:\t%.1f kg\n", m.TotalCO2Saved)
	_, _ = fmt.Fprintf(w, "Distance:\t%.1f km\n", m.TotalDistance)
	_, _ = fmt.Fprintf(w, "Efficiency gain:\t%.1f%%\n", m.EfficiencyImprovement)
	if r.Best != nil {
		_, _ = fmt.Fprintf(w, "Best performer:\t%s (%d)\n", r.Best.ProductID, r.Best.SustainabilityScore)
	}
	_, _ = fmt.Fprintf(w, "Trees equivalent:\t%d\n", r.Comparisons.TreesEquivalent)
	_, _ = fmt.Fprintf(w, "Car miles avoided:\t%d\n", r.Comparisons.CarMilesEquivalent)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "PRODUCT\tSCORE\tLABEL\tCARBON_KG\tDISTANCE_KM\tSTEPS")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----\t---------\t-----------\t-----")
	for _, s := range r.Scores {
		dist := s.TotalDistanceKm
		if s.RefinedDistanceKm != nil {
			dist = *s.RefinedDistanceKm
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\t%.1f\t%d\n",
			s.ProductID, s.SustainabilityScore, s.Label, s.CarbonFootprintKg, dist, s.TotalSteps)
	}
	_ = w.Flush()
}

// formatScore writes a single product score to out.
func formatScore(out io.Writer, s *model.ESGScore, estimated bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Product:\t%s\n", s.ProductID)
	label := esg.Label(int(s.SustainabilityScore))
	if estimated {
		label += ", estimated locally"
	}
	_, _ = fmt.Fprintf(w, "Score:\t%d (%s)\n", s.SustainabilityScore, label)
	_, _ = fmt.Fprintf(w, "Carbon:\t%.1f kg CO2\n", s.CarbonFootprintKg)
	_, _ = fmt.Fprintf(w, "Distance:\t%.1f km\n", s.TotalDistanceKm)
	_, _ = fmt.Fprintf(w, "Steps:\t%d\n", s.TotalSteps)
	_, _ = fmt.Fprintf(w, "CO2 saved:\t%.1f kg\n", s.CO2SavedVsTraditional)
	if s.ImpactMessage != "" {
		_, _ = fmt.Fprintf(w, "Impact:\t%s\n", s.ImpactMessage)
	}
	_ = w.Flush()
}
