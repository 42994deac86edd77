// Command atomic-db builds and inspects the atomic metadata database: an
// SQLite catalog with one row per atomic map, populated from the sidecar
// files the map-maker writes next to its outputs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomap/internal/atomicdb"
	"atomap/internal/logging"
)

var (
	verbose bool
	logger  *zap.Logger

	replace bool
)

var rootCmd = &cobra.Command{
	Use:   "atomic-db",
	Short: "Build and query the atomic map metadata database",
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
}

var buildCmd = &cobra.Command{
	Use:   "build SRC_DIR DB_PATH",
	Short: "Scan a map directory's sidecar files into the database",
	Long: `build walks SRC_DIR for ` + atomicdb.SidecarSuffix + ` sidecar files and inserts
one row per file into DB_PATH. Without --replace, rows append to an
existing database; rebuilding the same directory therefore duplicates
its rows unless --replace is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDir, dbPath := args[0], args[1]
		n, err := atomicdb.BuildFromDir(srcDir, dbPath, replace)
		if err != nil {
			return err
		}
		logger.Info("atomic database built",
			zap.String("db", dbPath),
			zap.Int("rows", n),
			zap.Bool("replaced", replace))
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query DB_PATH [FRAGMENT...]",
	Short: "Print rows matching the given SQL WHERE fragments",
	Long: `query prints matching rows as tab-separated values, one row per line,
columns in schema order. Fragments are combined with AND, e.g.:

  atomic-db query atomics.db "freq_channel = 'f090'" "pwv < 1.2"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := atomicdb.Open(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		recs, err := db.All(args[1:]...)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(r.Strings(), "\t"))
		}
		logger.Debug("query finished", zap.Int("rows", len(recs)))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&replace, "replace", false, "drop existing rows before inserting")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(buildCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
