// Command filter-sims runs one worker of a distributed filter-and-map pass:
// it resolves the atomic units of a time bundle, crosses them with a range
// of simulation indices, and bins this rank's share of the tasks into
// per-atomic weighted maps and weights.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomap/internal/filtering"
	"atomap/internal/logging"
	"atomap/internal/skymap"
)

var (
	verbose bool
	logger  *zap.Logger

	atomicDB         string
	atomicList       string
	bundleDB         string
	preprocessConfig string
	mapDir           string
	mapStringFormat  string
	simIDs           string
	outputDir        string
	freqChannel      string
	bundleID         int
	nullPropVal      string
	nside            int
	pixType          string
	carTemplate      string
	fpThin           int
	rank             int
	ranks            int
	jobs             int
)

var rootCmd = &cobra.Command{
	Use:   "filter-sims",
	Short: "Filter simulated skies through per-atomic observation maps",
	Long: `filter-sims scans simulated sky maps along each atomic observation's
pointing, demodulates the resulting streams, and bins them into weighted
maps. One process handles one rank's contiguous slice of the
(simulation x atomic) task set; run one process per rank under a scheduler
or pass --rank/--ranks explicitly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		pix, err := skymap.ParsePixType(pixType)
		if err != nil {
			return err
		}
		d, err := filtering.New(filtering.Options{
			AtomicDB:         atomicDB,
			AtomicList:       atomicList,
			BundleDB:         bundleDB,
			PreprocessConfig: preprocessConfig,
			MapDir:           mapDir,
			MapStringFormat:  mapStringFormat,
			SimIDs:           simIDs,
			OutputDir:        outputDir,
			FreqChannel:      freqChannel,
			BundleID:         bundleID,
			NullPropVal:      nullPropVal,
			Nside:            nside,
			PixType:          pix,
			CARTemplate:      carTemplate,
			FPThin:           fpThin,
			Rank:             rank,
			Ranks:            ranks,
			Jobs:             jobs,
		}, logger)
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&atomicDB, "atomic-db", "", "atomic metadata database (required)")
	f.StringVar(&atomicList, "atomic-list", "", "optional allow-list of obs_id wafer freq triples")
	f.StringVar(&bundleDB, "bundle-db", "", "bundle database (required)")
	f.StringVar(&preprocessConfig, "preprocess-config", "", "preprocessing configuration file (required)")
	f.StringVar(&mapDir, "map-dir", "", "directory holding the simulated maps (required)")
	f.StringVar(&mapStringFormat, "map-string-format", "", "simulated map filename template with {sim_id} (required)")
	f.StringVar(&simIDs, "sim-ids", "", "simulation index or inclusive range, e.g. 7 or 0,31 (required)")
	f.StringVar(&outputDir, "output-dir", "", "output root directory (required)")
	f.StringVar(&freqChannel, "freq-channel", "", "frequency channel, e.g. f090 (required)")
	f.IntVar(&bundleID, "bundle-id", 0, "bundle to process")
	f.StringVar(&nullPropVal, "null-prop-val", "", "optional null-split property value, e.g. pwv_low")
	f.IntVar(&nside, "nside", 512, "HEALPix resolution of the output maps")
	f.StringVar(&pixType, "pix-type", "hp", "pixelization of input and output maps: hp or car")
	f.StringVar(&carTemplate, "car-map-template", "", "CAR geometry template map (required with --pix-type car)")
	f.IntVar(&fpThin, "fp-thin", 0, "focal plane thinning stride, keep every Nth detector")
	f.IntVar(&rank, "rank", -1, "rank of this process (default: scheduler environment)")
	f.IntVar(&ranks, "ranks", 0, "total rank count (default: scheduler environment)")
	f.IntVar(&jobs, "jobs", 1, "concurrent tasks within this rank")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, name := range []string{
		"atomic-db", "bundle-db", "preprocess-config", "map-dir",
		"map-string-format", "sim-ids", "output-dir", "freq-channel",
	} {
		cobra.CheckErr(rootCmd.MarkFlagRequired(name))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
