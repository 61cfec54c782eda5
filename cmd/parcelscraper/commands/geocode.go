package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/db"
	"parcelscraper/internal/export"
	"parcelscraper/internal/geocode"

	"github.com/spf13/cobra"
)

var (
	geocodeOut       *string
	geocodeShapefile *string
)

func init() {
	geocodeOut = geocodeCmd.Flags().String("out", "", "Where to write the geocoded extract, defaults to '<extract> geocoded.csv'.")
	geocodeShapefile = geocodeCmd.Flags().String("shapefile", "", "Also write the geocoded rows as a point shapefile at this path.")
	rootCmd.AddCommand(geocodeCmd)
}

func geocodedPath(extract string) string {
	ext := filepath.Ext(extract)
	return strings.TrimSuffix(extract, ext) + " geocoded" + ext
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode [path/to/extract.csv] [--out <path>] [--shapefile <path.shp>]",
	Short: "Adds rooftop coordinates to the new_address of every row of an extract.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		extract := filepath.Join(config.OutputDir, export.AllHomesFile)
		if len(args) > 0 {
			extract = args[0]
		}
		out := *geocodeOut
		if out == "" {
			out = geocodedPath(extract)
		}

		clock, err := chrono.NewStandardImpl(config.Timezone)
		if err != nil {
			return err
		}
		database, err := db.Open(ctx, config.Database)
		if err != nil {
			return err
		}
		defer database.Close()

		client, err := geocode.NewClient(geocode.Options{
			BaseUrl:           config.Geocode.BaseUrl,
			ApiKey:            os.Getenv(config.Geocode.ApiKeyEnv),
			RequestsPerSecond: config.Geocode.RequestsPerSecond,
			CloudflareBypass:  config.Geocode.CloudflareBypass,
		}, db.New(database), clock, tel)
		if err != nil {
			return fmt.Errorf("%w (set %s)", err, config.Geocode.ApiKeyEnv)
		}

		table, err := export.Read(extract)
		if err != nil {
			return err
		}
		annotated, err := geocode.Annotate(ctx, client, table, config.ZipCodes, tel)
		if err != nil {
			return err
		}
		if err := export.Write(out, annotated); err != nil {
			return err
		}
		slog.Info("wrote geocoded extract", "path", out, "rows", len(annotated.Rows))

		if *geocodeShapefile != "" {
			written, err := geocode.WriteShapefile(*geocodeShapefile, annotated)
			if err != nil {
				return fmt.Errorf("write shapefile: %w", err)
			}
			slog.Info("wrote shapefile", "path", *geocodeShapefile, "points", written)
		}
		return nil
	},
}
