package cmd

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tppd/config"
	"tppd/internal/tppd"
)

var inputPath string
var outputDir string

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the full detection pipeline on a measurement table",
	Long: `Run the full detection pipeline on a 2D-TPP measurement table:

1. Filter out sparse profiles (and, optionally, profiles whose fold change
   never reaches the independent-filtering cutoff)
2. Fit the null (per-temperature mean) and alternative (shared midpoint and
   slope dose-response) models to every protein profile
3. Compute the nested-model F-statistic per protein
4. Bootstrap an empirical null distribution of F-statistics (B rounds per
   protein, one of three resampling strategies)
5. Estimate each protein's FDR against the null distribution and call hits

The input table needs the columns clustername, temperature, experiment,
logConcentration, log2Value and nObs. Four tables are written to the output
directory: params.csv, fstat.csv, fdr.csv and hits.csv, plus a summary.json
run report`,
	Run: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) {
	start := time.Now()
	conf := config.New()

	data, err := tppd.ReadMeasurementsFile(inputPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	results, err := tppd.Detect(data, conf)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err = os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	writeTable := func(name string, write func(f *os.File) error) {
		f, err := os.Create(filepath.Join(outputDir, name))
		if err != nil {
			log.Fatalf("failed to create %s: %v", name, err)
		}
		defer f.Close()
		if err = write(f); err != nil {
			log.Fatalf("failed to write %s: %v", name, err)
		}
	}

	writeTable("params.csv", func(f *os.File) error { return tppd.WriteParamsCSV(f, results.Params) })
	writeTable("fstat.csv", func(f *os.File) error { return tppd.WriteFStatsCSV(f, results.Observed) })
	writeTable("null.csv", func(f *os.File) error { return tppd.WriteFStatsCSV(f, results.Null) })
	writeTable("fdr.csv", func(f *os.File) error { return tppd.WriteFDRCSV(f, results.FDR) })
	writeTable("hits.csv", func(f *os.File) error { return tppd.WriteFDRCSV(f, results.Hits) })

	seconds := time.Since(start).Seconds()
	summary := filepath.Join(outputDir, "summary.json")
	if err = tppd.WriteSummaryJSON(summary, inputPath, results, conf.Strategy, conf.Rounds, conf.Alpha, seconds); err != nil {
		log.Fatalf("failed to write run summary: %v", err)
	}

	log.Printf("%d proteins tested, %d hits at FDR <= %g (%.1fs)", len(results.FDR), len(results.Hits), conf.Alpha, seconds)
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&inputPath, "in", "i", "", "path to the measurement table (.csv or .tsv)")
	detectCmd.Flags().StringVarP(&outputDir, "out", "o", ".", "directory the output tables are written to")
	detectCmd.MarkFlagRequired("in")

	detectCmd.Flags().Int("min-obs", 20, "minimum observations per protein profile")
	detectCmd.Flags().Float64("fc-threshold", 1.5, "fold-change cutoff of the independent filter")
	detectCmd.Flags().Bool("independent-filtering", false, "apply the independent fold-change filter before fitting")
	detectCmd.Flags().Int("max-iterations", 500, "optimizer iteration cap per fit")
	detectCmd.Flags().String("method", "nelder-mead", "optimizer: nelder-mead, lbfgs or gradient")
	detectCmd.Flags().Bool("gradient", false, "supply the analytic gradient to the optimizer")
	detectCmd.Flags().Bool("trimmed", false, "refine the alternative fit with a trimmed-RSS objective")
	detectCmd.Flags().Float64("trim-keep", 0.9, "fraction of observations the trimmed objective keeps")
	detectCmd.Flags().IntP("b", "b", 20, "bootstrap rounds per protein")
	detectCmd.Flags().Bool("by-ms-exp", true, "stratify residual resampling by MS experiment")
	detectCmd.Flags().String("strategy", "fast-shuffle", "resampling: null-refit, alt-residual or fast-shuffle")
	detectCmd.Flags().Int64("seed", 1, "random seed for the per-protein resampling sources")
	detectCmd.Flags().Int("workers", 0, "worker pool size, 0 means NumCPU-1")
	detectCmd.Flags().Float64("alpha", 0.1, "FDR cutoff for hit calling")

	// Bind the parameters to viper
	for _, flag := range []string{
		"min-obs", "fc-threshold", "independent-filtering", "max-iterations",
		"method", "gradient", "trimmed", "trim-keep", "b", "by-ms-exp",
		"strategy", "seed", "workers", "alpha",
	} {
		viper.BindPFlag(flag, detectCmd.Flags().Lookup(flag))
	}
}
