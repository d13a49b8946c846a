package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geopix/mosaic/internal/logging"
	"github.com/geopix/mosaic/internal/mosaic"
	"github.com/geopix/mosaic/pkg/tile"
)

const version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Fetch and stitch satellite imagery tiles for a UTM region",
	Long: `mosaic downloads the map tiles covering a projected UTM region and
stitches them into a single PNG image.

The region of interest comes from a built-in dataset, from a GeoTIFF's
metadata, or defaults to the set1 dataset. Tiles are fetched in parallel
and missing tiles are left blank in the output.

Examples:
  # Fetch the default dataset (set1) at zoom 15
  mosaic

  # Fetch the second built-in dataset as plain Sentinel-2 imagery
  mosaic --dataset set2 --image-type sentinel2

  # Derive the region and UTM zone from a GeoTIFF
  mosaic --geotiff area.tif --zoom 14

  # Write a world file next to the image and cap the output size
  mosaic --dataset set1 -o area.png -w --max-size 4096

  # Start the HTTP server
  mosaic serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMosaic,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mosaic.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file (default: stdout)")

	// Region options
	rootCmd.Flags().StringP("dataset", "d", "", "built-in dataset to fetch (set1|set2)")
	rootCmd.Flags().StringP("geotiff", "g", "", "GeoTIFF file to derive region and UTM zone from")
	rootCmd.Flags().Int("utm-zone", 0, "override the dataset's UTM zone")

	// Tile options
	rootCmd.Flags().IntP("zoom", "z", mosaic.DefaultZoom, "zoom level")
	rootCmd.Flags().String("image-type", "superres", "imagery layer (superres|sentinel2)")
	rootCmd.Flags().String("tile-url", "", "override tile URL template with {z}, {x}, {y} placeholders")

	// Fetch options
	rootCmd.Flags().Int("workers", mosaic.DefaultWorkers, "number of parallel tile downloads")
	rootCmd.Flags().Float64("rate", 0, "tile requests per second (0 = unlimited)")
	rootCmd.Flags().Duration("timeout", mosaic.DefaultTimeout, "HTTP timeout per tile request")
	rootCmd.Flags().String("user-agent", mosaic.DefaultUserAgent, "HTTP User-Agent header")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stitched_image_<region>_z<zone>.png)")
	rootCmd.Flags().BoolP("worldfile", "w", false, "write world file next to the image")
	rootCmd.Flags().Int("max-size", 0, "cap output width and height in pixels (0 = unlimited)")

	rootCmd.MarkFlagsMutuallyExclusive("dataset", "geotiff")

	// Bind flags to viper for root command
	viper.BindPFlag("dataset", rootCmd.Flags().Lookup("dataset"))
	viper.BindPFlag("geotiff", rootCmd.Flags().Lookup("geotiff"))
	viper.BindPFlag("utm-zone", rootCmd.Flags().Lookup("utm-zone"))
	viper.BindPFlag("zoom", rootCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("image-type", rootCmd.Flags().Lookup("image-type"))
	viper.BindPFlag("tile-url", rootCmd.Flags().Lookup("tile-url"))
	viper.BindPFlag("fetch.workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("fetch.rate", rootCmd.Flags().Lookup("rate"))
	viper.BindPFlag("fetch.timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("fetch.user-agent", rootCmd.Flags().Lookup("user-agent"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("worldfile", rootCmd.Flags().Lookup("worldfile"))
	viper.BindPFlag("max-size", rootCmd.Flags().Lookup("max-size"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".mosaic" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mosaic")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the default slog logger from the log.* keys.
func initLogging() {
	logging.Setup(viper.GetString("log.level"), viper.GetString("log.format"), viper.GetString("log.file"))
}

func runMosaic(cmd *cobra.Command, args []string) error {
	maxSize := viper.GetInt("max-size")

	opts := &mosaic.Options{
		Dataset:   viper.GetString("dataset"),
		GeoTIFF:   viper.GetString("geotiff"),
		Zone:      viper.GetInt("utm-zone"),
		Zoom:      viper.GetInt("zoom"),
		Source:    mosaic.ImagerySource(viper.GetString("image-type")),
		TileURL:   viper.GetString("tile-url"),
		Workers:   viper.GetInt("fetch.workers"),
		RateLimit: viper.GetFloat64("fetch.rate"),
		Timeout:   viper.GetDuration("fetch.timeout"),
		UserAgent: viper.GetString("fetch.user-agent"),
		MaxWidth:  maxSize,
		MaxHeight: maxSize,
	}

	// Progress bar on stderr; the total is only known once the region
	// is resolved, so the bar is created on the first callback.
	var bar *progressbar.ProgressBar
	opts.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "fetching tiles")
		}
		_ = bar.Set(done)
	}

	result, err := mosaic.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if result.Image == nil {
		// Nothing fetched, nothing to write. Run has already logged
		// the warning.
		return nil
	}

	output := viper.GetString("output")
	if output == "" {
		output = result.DefaultOutput
	}

	if err := tile.WritePNG(output, result.Image); err != nil {
		return err
	}

	b := result.Image.Bounds()
	slog.Info("image saved", "file", output, "width", b.Dx(), "height", b.Dy(),
		"tiles_fetched", result.TilesFetched, "tiles_total", result.TilesTotal)

	if viper.GetBool("worldfile") {
		px, py, minX, maxY := result.WorldFileParams()
		worldFile, err := tile.WriteWorldFile(output, px, py, minX, maxY)
		if err != nil {
			return err
		}
		slog.Info("world file saved", "file", worldFile)
	}

	return nil
}
