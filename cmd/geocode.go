package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Manage the geocode cache",
}

var geocodeLookupCmd = &cobra.Command{
	Use:   "lookup <location>",
	Short: "Resolve a location through the cache and providers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Geocoder.Geocode(ctx, args[0])
		if err != nil {
			return err
		}
		if !r.Matched {
			fmt.Fprintf(os.Stdout, "No match for %q\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "%.6f, %.6f (%s, %s)\n", r.Latitude, r.Longitude, r.Source, r.Quality)
		return nil
	},
}

var geocodeImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Seed the geocode cache from a CSV file",
	Long:  "Reads location,latitude,longitude[,source[,quality]] rows. A header row is skipped when its latitude column is not a number.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		entries, err := parseGeocodeCSV(f, time.Now())
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ImportGeocodes(ctx, entries)
		if err != nil {
			return err
		}
		zap.L().Info("geocode import complete", zap.Int("entries", n), zap.String("csv", args[0]))
		fmt.Fprintf(os.Stdout, "Imported %d locations\n", n)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired sessions and stale geocode cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		sessions, err := env.Store.DeleteExpiredSessions(ctx)
		if err != nil {
			return err
		}
		geocodes, err := env.Store.DeleteExpiredGeocodes(ctx, cfg.Geocode.CacheTTL())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed %d sessions and %d geocode entries\n", sessions, geocodes)
		return nil
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeLookupCmd)
	geocodeCmd.AddCommand(geocodeImportCmd)
	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(pruneCmd)
}

// parseGeocodeCSV reads cache entries stamped with at. Rows with fewer
// than three columns or bad coordinates fail with their line number.
func parseGeocodeCSV(r io.Reader, at time.Time) ([]model.GeocodeEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var entries []model.GeocodeEntry
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read geocode csv")
		}
		if len(rec) < 3 {
			return nil, eris.Errorf("geocode csv line %d: want location,latitude,longitude", line)
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if latErr != nil && line == 1 {
			continue
		}
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if latErr != nil || lonErr != nil {
			return nil, eris.Errorf("geocode csv line %d: invalid coordinates", line)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, eris.Errorf("geocode csv line %d: coordinates out of range", line)
		}

		res := geocode.Result{Latitude: lat, Longitude: lon, Source: "import", Quality: "approximate", Matched: true}
		if len(rec) > 3 && rec[3] != "" {
			res.Source = rec[3]
		}
		if len(rec) > 4 && rec[4] != "" {
			res.Quality = rec[4]
		}
		entries = append(entries, geocode.NewEntry(rec[0], res, at))
	}
	return entries, nil
}
