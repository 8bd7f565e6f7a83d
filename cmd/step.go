package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blocktrace/blocktrace/internal/model"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Record provenance steps",
}

var stepAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a custody step for a product",
	Long:  "Validates the step locally and records it for the logged-in principal. The service assigns the timestamp.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := stepInputFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		msg, err := env.Backend.AddStep(ctx, in, s.Principal)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, msg)
		return nil
	},
}

func init() {
	addStepFlags(stepAddCmd.Flags())
	stepCmd.AddCommand(stepAddCmd)
	rootCmd.AddCommand(stepCmd)
}

func addStepFlags(f *pflag.FlagSet) {
	f.String("product", "", "product ID (required)")
	f.String("actor", "", "actor name (required)")
	f.String("role", "", "actor role, e.g. farmer, transporter (required)")
	f.String("action", "", "what happened, e.g. harvested, shipped (required)")
	f.String("location", "", "where it happened (required)")
	f.String("notes", "", "free-form notes")
	f.String("status", "", "verified, delay, dispute or pending (default verified)")
	f.String("transport", "", "truck, ship, plane or train")
	f.Float64("temperature", 0, "temperature in celsius")
	f.Float64("humidity", 0, "relative humidity percent")
	f.Float64("lat", 0, "GPS latitude")
	f.Float64("lon", 0, "GPS longitude")
	f.String("batch", "", "batch number")
	f.String("certification", "", "certification hash")
	f.Int("quality", 0, "quality score 0-100")
	f.Float64("carbon", 0, "carbon footprint in kg CO2")
	f.Float64("distance", 0, "distance travelled in km")
	f.Float64("cost", 0, "cost in USD")
}

// stepInputFromFlags builds a StepInput. Optional values are set only when
// their flag was given, so an explicit zero is kept.
func stepInputFromFlags(f *pflag.FlagSet) (model.StepInput, error) {
	var in model.StepInput
	in.ProductID, _ = f.GetString("product")
	in.ActorName, _ = f.GetString("actor")
	in.Role, _ = f.GetString("role")
	in.Action, _ = f.GetString("action")
	in.Location, _ = f.GetString("location")

	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	num := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}

	in.Notes = str("notes")
	in.BatchNumber = str("batch")
	in.CertificationHash = str("certification")
	if v := str("status"); v != nil {
		st := model.Status(*v)
		in.Status = &st
	}
	if v := str("transport"); v != nil {
		mode := model.TransportMode(*v)
		in.TransportMode = &mode
	}
	in.TemperatureCelsius = num("temperature")
	in.HumidityPercent = num("humidity")
	in.GPSLatitude = num("lat")
	in.GPSLongitude = num("lon")
	in.CarbonFootprintKg = num("carbon")
	in.DistanceKm = num("distance")
	in.CostUSD = num("cost")
	if f.Changed("quality") {
		q, err := f.GetInt("quality")
		if err != nil {
			return in, err
		}
		in.QualityScore = &q
	}
	return in, nil
}
