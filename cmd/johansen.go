package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/TruWeaveTrader/cointeg/internal/signal"
	"github.com/TruWeaveTrader/cointeg/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(johansenCmd)

	johansenCmd.Flags().Int("lags", 1, "number of lagged differences")
	johansenCmd.Flags().String("significance", "95%", "significance tier (90%, 95%, 99%)")
	johansenCmd.Flags().Int("trend", 0, "critical value family (-1 none, 0 constant, 1 linear)")
	johansenCmd.Flags().String("start", "", "first timestamp to include")
	johansenCmd.Flags().String("end", "", "first timestamp to exclude")
}

var johansenCmd = &cobra.Command{
	Use:   "johansen",
	Short: "Estimate cointegration vectors",
	Long: `Runs the Johansen trace test on daily closes of the selected symbols
and prints eigenvalues, test statistics, critical values and the
cointegration vectors that pass at the requested significance.`,
	Args: cobra.NoArgs,
	RunE: runJohansen,
}

func runJohansen(cmd *cobra.Command, args []string) error {
	start := time.Now()

	lags := cfg.Backtest.Lags
	if cmd.Flags().Changed("lags") {
		lags, _ = cmd.Flags().GetInt("lags")
	}
	sig := cfg.Backtest.Significance
	if cmd.Flags().Changed("significance") {
		s, _ := cmd.Flags().GetString("significance")
		var err error
		if sig, err = models.ParseSignificance(s); err != nil {
			return err
		}
	}
	trendFlag, _ := cmd.Flags().GetInt("trend")
	trend := johansen.TrendOrder(trendFlag)

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
	daily := signal.Window(prices, from, to).DropIncomplete()
	x, err := daily.Dense()
	if err != nil {
		return err
	}

	var res *johansen.Result
	if trend == johansen.TrendConstant {
		res, err = dataCache.Estimate(x, lags, sig)
	} else {
		res, err = johansen.EstimateTrend(x, trend, lags, sig)
	}
	if err != nil {
		return fmt.Errorf("johansen estimation failed: %w", err)
	}

	logger.Debug("johansen complete",
		zap.Int("observations", daily.Rows()),
		zap.Int("trend", trendFlag),
		zap.Int("cointegration_vectors", res.CountCointegrationVectors))

	fmt.Println(formatters.FormatJohansen(daily.Symbols, res))
	fmt.Printf("\n⏱  %d daily observations (%s - %s) • %dms\n",
		daily.Rows(),
		formatters.FormatDate(daily.Index[0]),
		formatters.FormatDate(daily.Index[daily.Rows()-1]),
		time.Since(start).Milliseconds())
	return nil
}
