// Command rookd runs rook's memory engine as a standalone process: the
// background consolidation and intention loops (serve), a one-shot
// consolidation pass (consolidate), and an inspection command for memories
// whose retrievability is below the archival threshold (archive-candidates).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "rookd",
	Short: "rook memory engine daemon",
	Long: `rookd hosts the cognitively-inspired long-term memory engine: the
ingestion gate, FSRS/STC consolidation pipeline, hybrid retrieval engine,
and their supporting persistence layers, wired from one YAML configuration
file and ROOK_* environment overrides.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "rookd.yaml", "path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(archiveCandidatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
