package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"tppd/internal/tppd"
)

var fdrPath string
var hitsAlpha float64

// hitsCmd represents the hits command
var hitsCmd = &cobra.Command{
	Use:   "hits",
	Short: "Re-threshold an existing FDR table at a new cutoff",
	Long: `Re-threshold an existing FDR table at a new cutoff.

Reads the fdr.csv written by "tppd detect" and writes the rows at or below
the new alpha to stdout, without recomputing fits or bootstraps`,
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(fdrPath)
		if err != nil {
			log.Fatalf("failed to open FDR table: %v", err)
		}
		defer f.Close()

		table, err := tppd.ReadFDRCSV(f)
		if err != nil {
			log.Fatalf("%v", err)
		}

		if err = tppd.WriteFDRCSV(os.Stdout, tppd.FindHits(table, hitsAlpha)); err != nil {
			log.Fatalf("failed to write hit list: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(hitsCmd)

	hitsCmd.Flags().StringVarP(&fdrPath, "fdr", "f", "", "path to an fdr.csv from a previous run")
	hitsCmd.Flags().Float64VarP(&hitsAlpha, "alpha", "a", 0.1, "FDR cutoff for hit calling")
	hitsCmd.MarkFlagRequired("fdr")
}
