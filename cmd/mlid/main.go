package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mlid/adapters/api"
	"mlid/adapters/tabular"
	"mlid/app"
	"mlid/domain/geo"
	"mlid/internal/analysis"
	"mlid/internal/config"
	"mlid/internal/logging"
	"mlid/internal/multilevel"
)

func main() {
	// A missing .env is fine; the defaults cover everything.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "mlid",
		Short: "Multilevel index of dissimilarity decomposition",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		file         string
		idCol        string
		yCol         string
		xCol         string
		totalCol     string
		levels       []string
		places       []string
		simulations  int
		seed         uint64
		ciFactor     float64
		catplotLevel string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Decompose the index of dissimilarity for a unit table",
		Long: `Load a CSV or XLSX unit table, fit the multilevel model and print the
decomposition: ID, expected ID, per-level variance shares, holdbacks,
impacts and any requested place effects.

Example: mlid analyze --file aggdata.csv --id code --y whiteb --x asian \
  --total persons --levels LSOA,MSOA,LAD --places LAD=Bradford`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.NewDefaultLogger()

			countCols := []string{yCol, xCol}
			if totalCol != "" {
				countCols = append(countCols, totalCol)
			}
			table, err := tabular.NewDataReader(file).ReadTable(tabular.Schema{
				IDCol:     idCol,
				CountCols: countCols,
				KeyCols:   levels,
			})
			if err != nil {
				return err
			}

			parsedPlaces, err := parsePlaces(places)
			if err != nil {
				return err
			}
			if simulations == 0 {
				simulations = cfg.Simulations
			}
			if ciFactor == 0 {
				ciFactor = cfg.CIFactor
			}

			svc := app.NewAnalysisService(multilevel.Options{MaxIter: cfg.MaxIter, Tol: cfg.Tol}, log)
			result, err := svc.Run(context.Background(), table, app.Request{
				Spec: multilevel.Spec{
					YCol:     yCol,
					XCol:     xCol,
					TotalCol: totalCol,
					Levels:   geo.Hierarchy(levels),
				},
				Simulations:  simulations,
				Seed:         seed,
				CIFactor:     ciFactor,
				Places:       parsedPlaces,
				CatplotLevel: catplotLevel,
			})
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX unit table (required)")
	cmd.Flags().StringVar(&idCol, "id", "code", "unit identifier column")
	cmd.Flags().StringVar(&yCol, "y", "", "group Y count column (required)")
	cmd.Flags().StringVar(&xCol, "x", "", "group X count column (required)")
	cmd.Flags().StringVar(&totalCol, "total", "", "total population column (estimated as y+x when omitted)")
	cmd.Flags().StringSliceVar(&levels, "levels", nil, "hierarchy key columns, base to top")
	cmd.Flags().StringSliceVar(&places, "places", nil, "named places as level=group pairs")
	cmd.Flags().IntVar(&simulations, "simulations", 0, "expected-ID trials (-1 to skip)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulation seed (0 for random)")
	cmd.Flags().Float64Var(&ciFactor, "ci-factor", 0, "confidence interval width factor")
	cmd.Flags().StringVar(&catplotLevel, "catplot-level", "", "level for the ranked-residual subsample")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("y")
	_ = cmd.MarkFlagRequired("x")

	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis engine over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			log := logging.NewDefaultLogger()

			svc := app.NewAnalysisService(multilevel.Options{MaxIter: cfg.MaxIter, Tol: cfg.Tol}, log)
			server := api.NewServer(svc, log)

			log.Info("listening on %s", cfg.ListenAddr)
			return http.ListenAndServe(cfg.ListenAddr, server.Router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MLID_LISTEN_ADDR)")
	return cmd
}

// parsePlaces turns level=group pairs into analysis places.
func parsePlaces(raw []string) ([]analysis.Place, error) {
	places := make([]analysis.Place, 0, len(raw))
	for _, p := range raw {
		level, group, ok := strings.Cut(p, "=")
		if !ok || level == "" || group == "" {
			return nil, fmt.Errorf("invalid place %q: want level=group", p)
		}
		places = append(places, analysis.Place{Level: level, Group: group})
	}
	return places, nil
}

func printResult(w io.Writer, res *app.Result) {
	fmt.Fprintf(w, "run %s\n", res.RunID)
	fmt.Fprintf(w, "ID: %.4f\n", res.ID)
	if res.Expected != nil {
		fmt.Fprintf(w, "expected ID: %.4f (sd %.4f over %d trials)\n",
			res.Expected.Expected, res.Expected.StdDev, res.Expected.Trials)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	if len(res.Decomposition) > 0 {
		fmt.Fprintln(w, "\nvariance decomposition:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "level\tvariance\tpvariance\tholdback")
		for _, row := range res.Decomposition {
			fmt.Fprintf(tw, "%s\t%.6g\t%.2f\t%.2f\n", row.Level, row.Variance, row.Pvariance, row.Holdback)
		}
		tw.Flush()
	}

	if len(res.Impacts) > 0 {
		fmt.Fprintln(w, "\nimpacts:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "level\tgroup\tpcntID\tpcntUnits\timpact\tscldMean\tpcntNeg")
		for _, row := range res.Impacts {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.1f\t%.3f\t%.1f\n",
				row.Level, row.Group, row.PcntID, row.PcntUnits, row.Impact, row.ScldMean, row.PcntNegative)
		}
		tw.Flush()
	}

	if res.Effect != nil {
		fmt.Fprintln(w, "\nplace effects:")
		fmt.Fprintf(w, "  level effects zeroed:  ID %.4f\n", res.Effect.LevelZeroedID)
		fmt.Fprintf(w, "  residuals zeroed:      ID %.4f\n", res.Effect.ResidualZeroedID)
		fmt.Fprintf(w, "  subset only:           ID %.4f\n", res.Effect.SubsetID)
		fmt.Fprintf(w, "  impact %.1f, R-squared %.3f over %d units\n",
			res.Effect.Impact, res.Effect.RSquared, res.Effect.MemberUnits)
	}

	fmt.Fprintf(w, "\ncatplot: %d points selected\n", len(res.Catplot))
}
