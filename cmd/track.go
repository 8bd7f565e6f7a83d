package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/route"
	"github.com/blocktrace/blocktrace/internal/timeline"
)

var trackCmd = &cobra.Command{
	Use:   "track <product-id>",
	Short: "Show a product's provenance timeline",
	Long:  "Fetches the product's custody history for the logged-in principal and prints the timeline, optionally filtered and exported.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		productID := args[0]

		filters := timeline.Filters{}
		filters.Role, _ = cmd.Flags().GetString("role")
		filters.Status, _ = cmd.Flags().GetString("status")
		filters.TransportMode, _ = cmd.Flags().GetString("transport")
		filters.QualityRange, _ = cmd.Flags().GetString("quality")
		if err := filters.Validate(); err != nil {
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
		steps, err := env.Backend.GetProductHistory(ctx, productID, s.Principal)
		if err != nil {
			return eris.Wrap(err, "track")
		}
		events := timeline.Filter(timeline.Build(steps), filters)

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := writeFile(path, func(w io.Writer) error {
				return timeline.ExportXLSX(w, productID, events)
			}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
		}
		if path, _ := cmd.Flags().GetString("geojson"); path != "" {
			if err := writeFile(path, func(w io.Writer) error {
				return json.NewEncoder(w).Encode(route.GeoJSON(events))
			}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"product_id": productID,
				"events":     events,
				"summary":    timeline.Summarize(events),
			})
		}

		if len(events) == 0 {
			fmt.Fprintf(os.Stderr, "No records found for product %s.\n", productID)
			return nil
		}
		formatTimeline(os.Stdout, events)
		formatSummary(os.Stdout, timeline.Summarize(events))
		return nil
	},
}

var storyCmd = &cobra.Command{
	Use:   "story <product-id>",
	Short: "Tell a product's journey as a story",
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
		steps, err := env.Backend.GetProductHistory(ctx, args[0], s.Principal)
		if err != nil {
			return eris.Wrap(err, "story")
		}
		text, _, err := env.Narrator.Tell(ctx, args[0], timeline.Build(steps))
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

func init() {
	trackCmd.Flags().String("role", "", "only show events for this role")
	trackCmd.Flags().String("status", "", "only show events with this status (verified, delay, dispute, pending)")
	trackCmd.Flags().String("transport", "", "only show events with this transport mode (truck, ship, plane, train)")
	trackCmd.Flags().String("quality", "", "inclusive quality range, e.g. 80-100")
	trackCmd.Flags().String("xlsx", "", "also export the timeline to this XLSX file")
	trackCmd.Flags().String("geojson", "", "also write the route to this GeoJSON file")
	trackCmd.Flags().Bool("json", false, "print JSON instead of a table")

	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(storyCmd)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// formatTimeline writes a tabular timeline to out.
func formatTimeline(out io.Writer, events []model.TimelineEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tTIME\tACTOR\tROLE\tACTION\tLOCATION\tSTATUS\tTRANSPORT")
	_, _ = fmt.Fprintln(w, "-\t----\t-----\t----\t------\t--------\t------\t---------")

	for _, ev := range events {
		transport := ""
		if ev.TransportMode != nil {
			transport = string(*ev.TransportMode)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Index+1,
			ev.Time.Format("2006-01-02 15:04"),
			ev.Actor,
			ev.Role,
			ev.Action,
			ev.Location,
			statusLabel(ev.Status),
			transport,
		)
	}
	_ = w.Flush()
}

// statusLabel keeps statuses the UI does not know verbatim.
func statusLabel(s model.Status) string {
	if s.Valid() {
		return s.Label()
	}
	return string(s)
}

// formatSummary writes timeline statistics to out.
func formatSummary(out io.Writer, s *timeline.Summary) {
	if s == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Events:\t%d\n", s.TotalEvents)
	_, _ = fmt.Fprintf(w, "Verified:\t%d (%d%%)\n", s.VerifiedCount, s.Efficiency)
	_, _ = fmt.Fprintf(w, "Locations:\t%d\n", s.UniqueLocations)
	_, _ = fmt.Fprintf(w, "Distance:\t%.1f km\n", s.TotalDistanceKm)
	_, _ = fmt.Fprintf(w, "Carbon:\t%.2f kg CO2\n", s.TotalCarbonKg)
	if !s.TotalCostUSD.IsZero() {
		_, _ = fmt.Fprintf(w, "Cost:\t$%s\n", s.TotalCostUSD.StringFixed(2))
	}
	if s.AvgQuality != nil {
		_, _ = fmt.Fprintf(w, "Avg quality:\t%d\n", *s.AvgQuality)
	}
	if s.AvgTemperature != nil {
		_, _ = fmt.Fprintf(w, "Avg temperature:\t%.1f C\n", *s.AvgTemperature)
	}
	_, _ = fmt.Fprintf(w, "Sustainability:\t%d\n", s.SustainabilityScore)
	_ = w.Flush()
}
