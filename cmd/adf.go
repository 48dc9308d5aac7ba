package cmd

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TruWeaveTrader/cointeg/internal/adf"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/TruWeaveTrader/cointeg/internal/signal"
	"github.com/TruWeaveTrader/cointeg/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(adfCmd)

	adfCmd.Flags().Int("max-lag", 6, "largest lag order considered")
	adfCmd.Flags().String("regression", "n", "deterministic terms (n/nc, c, ct, ctt)")
	adfCmd.Flags().String("autolag", "AIC", "lag selection (AIC, BIC, t-stat, none)")
	adfCmd.Flags().String("significance", "95%", "significance tier used for the verdict")
	adfCmd.Flags().Bool("spread", false, "also test the spread of the first cointegration vector")
	adfCmd.Flags().String("start", "", "first timestamp to include")
	adfCmd.Flags().String("end", "", "first timestamp to exclude")
}

var adfCmd = &cobra.Command{
	Use:   "adf",
	Short: "Augmented Dickey-Fuller stationarity tests",
	Long: `Runs the augmented Dickey-Fuller test on the daily closes of each
selected symbol and on their first differences. With --spread the
Johansen spread of the window is tested as well.`,
	Args: cobra.NoArgs,
	RunE: runADF,
}

func runADF(cmd *cobra.Command, args []string) error {
	start := time.Now()

	testCfg := cfg.Backtest.ADF
	if cmd.Flags().Changed("max-lag") {
		testCfg.MaxLag, _ = cmd.Flags().GetInt("max-lag")
	}
	var err error
	if cmd.Flags().Changed("regression") {
		s, _ := cmd.Flags().GetString("regression")
		if testCfg.Regression, err = adf.ParseRegression(s); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("autolag") {
		s, _ := cmd.Flags().GetString("autolag")
		if testCfg.Autolag, err = adf.ParseCriterion(s); err != nil {
			return err
		}
	}
	sig := cfg.Backtest.Significance
	if cmd.Flags().Changed("significance") {
		s, _ := cmd.Flags().GetString("significance")
		if sig, err = models.ParseSignificance(s); err != nil {
			return err
		}
	}
	if err := testCfg.Validate(); err != nil {
		return err
	}

	var from, to time.Time
	if err := timeFlag(cmd, "start", &from); err != nil {
		return err
	}
	if err := timeFlag(cmd, "end", &to); err != nil {
		return err
	}

	prices, err := loadPrices()
	if err != nil {
		return err
	}
	daily := signal.Window(prices, from, to)

	rows := stationarityRows(daily, testCfg)

	if spread, _ := cmd.Flags().GetBool("spread"); spread {
		rows = append(rows, spreadRow(daily, sig, testCfg))
	}

	fmt.Println(formatters.FormatStationarity(rows, sig))
	fmt.Printf("\n⏱  %s, max lag %d, %s • %dms\n",
		testCfg.Regression, testCfg.MaxLag, testCfg.Autolag, time.Since(start).Milliseconds())
	return nil
}

// stationarityRows tests every column of daily and its first difference, in
// column order. The errgroup only bounds the number of concurrent tests: a
// failing test is reported in its own row and never cancels the others, so
// every goroutine returns nil.
func stationarityRows(daily *models.PriceMatrix, testCfg adf.Config) []formatters.StationarityRow {
	rows := make([]formatters.StationarityRow, 2*daily.Cols())
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for j, sym := range daily.Symbols {
		levels := present(daily.Column(j))
		g.Go(func() error {
			rows[2*j] = stationarityRow(sym, levels, testCfg)
			return nil
		})
		g.Go(func() error {
			rows[2*j+1] = stationarityRow("diff("+sym+")", difference(levels), testCfg)
			return nil
		})
	}
	_ = g.Wait()
	return rows
}

func stationarityRow(name string, series []float64, testCfg adf.Config) formatters.StationarityRow {
	res, err := adf.Test(series, testCfg)
	if err != nil {
		logger.Debug("adf failed", zap.String("series", name), zap.Error(err))
	}
	return formatters.StationarityRow{Name: name, Result: res, Err: err}
}

func spreadRow(daily *models.PriceMatrix, sig models.Significance, testCfg adf.Config) formatters.StationarityRow {
	complete := daily.DropIncomplete()
	x, err := complete.Dense()
	if err != nil {
		return formatters.StationarityRow{Name: "spread", Err: err}
	}
	res, err := dataCache.Estimate(x, cfg.Backtest.Lags, sig)
	if err != nil {
		return formatters.StationarityRow{Name: "spread", Err: err}
	}
	vector, err := res.CointegrationVector(0)
	if err != nil {
		return formatters.StationarityRow{Name: "spread", Err: err}
	}
	s, err := signal.Project(complete, vector)
	if err != nil {
		return formatters.StationarityRow{Name: "spread", Err: err}
	}
	return stationarityRow("spread", s.Values, testCfg)
}

// present drops missing observations
func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func difference(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}
