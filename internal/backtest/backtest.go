// Package backtest calibrates a cointegration vector on one window and trades
// the resulting spread through the hysteresis scaler on another.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/TruWeaveTrader/cointeg/internal/adf"
	"github.com/TruWeaveTrader/cointeg/internal/cache"
	"github.com/TruWeaveTrader/cointeg/internal/config"
	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/TruWeaveTrader/cointeg/internal/pnl"
	"github.com/TruWeaveTrader/cointeg/internal/scaling"
	"github.com/TruWeaveTrader/cointeg/internal/signal"
)

var (
	ErrDegenerateHalfLife = errors.New("degenerate half-life: no mean reversion in calibration signal")
	ErrEmptyWindow        = errors.New("window contains no complete observations")
	ErrInvalidStepSize    = errors.New("band step size must be positive")
)

// Runner executes backtests for one configuration
type Runner struct {
	cfg    config.Backtest
	cache  *cache.Cache
	logger *zap.Logger
}

// NewRunner creates a runner. A nil cache disables memoisation and a nil
// logger discards output.
func NewRunner(cfg config.Backtest, c *cache.Cache, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		cache:  c,
		logger: logger.With(zap.String("component", "backtest")),
	}
}

// Calibration holds everything fitted on the calibration window
type Calibration struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Observations int              `json:"observations"`
	Johansen     *johansen.Result `json:"johansen"`
	Vector       []float64        `json:"vector"`
	HedgeRatios  []float64        `json:"hedge_ratios"`
	Signal       models.Series    `json:"signal"`
	HalfLife     int              `json:"half_life"`
	Slope        float64          `json:"slope"`
	Reference    float64          `json:"reference"`
	StdDev       float64          `json:"std_dev"`
	StepSize     float64          `json:"step_size"`

	// Stationarity is nil when the diagnostic could not be computed
	Stationarity  *adf.Result `json:"stationarity,omitempty"`
	NotStationary bool        `json:"not_stationary"`
}

// Calibrate fits the cointegration vector, half-life and band parameters
func (r *Runner) Calibrate(prices *models.PriceMatrix) (*Calibration, error) {
	cal := signal.Window(prices, r.cfg.CalibrationStart, r.cfg.CalibrationEnd).DropIncomplete()
	if cal.Rows() == 0 {
		return nil, fmt.Errorf("calibration: %w", ErrEmptyWindow)
	}
	x, err := cal.Dense()
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	res, err := r.estimate(x)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	r.logger.Info("johansen estimated",
		zap.Int("observations", cal.Rows()),
		zap.Int("lags", r.cfg.Lags),
		zap.String("significance", r.cfg.Significance.String()),
		zap.Int("cointegration_vectors", res.CountCointegrationVectors),
		zap.Bool("degraded", res.Degraded()))

	vector, err := res.CointegrationVector(r.cfg.VectorIndex)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	c := &Calibration{
		Start:        cal.Index[0],
		End:          cal.Index[cal.Rows()-1],
		Observations: cal.Rows(),
		Johansen:     res,
		Vector:       vector,
		HedgeRatios:  johansen.Normalize(vector, 0),
	}
	if c.Signal, err = signal.Project(cal, vector); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	if c.HalfLife, c.Slope, err = HalfLife(c.Signal.Values); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	if st, err := adf.Test(c.Signal.Values, r.cfg.ADF); err != nil {
		r.logger.Warn("stationarity diagnostic failed", zap.Error(err))
	} else {
		c.Stationarity = st
		c.NotStationary = st.NotStationary(r.cfg.Significance)
		if c.NotStationary {
			r.logger.Warn("calibration signal is not stationary",
				zap.Float64("adf_statistic", st.Statistic),
				zap.Float64("critical_value", st.CriticalValue(r.cfg.Significance)))
		}
	}

	c.Reference, c.StdDev = stat.MeanStdDev(c.Signal.Values, nil)
	c.StepSize = r.cfg.BandMultiplier * c.StdDev
	if !(c.StepSize > 0) || math.IsInf(c.StepSize, 0) {
		return nil, fmt.Errorf("calibration: %w: got %v", ErrInvalidStepSize, c.StepSize)
	}

	r.logger.Info("calibration complete",
		zap.Int("half_life", c.HalfLife),
		zap.Float64("reference", c.Reference),
		zap.Float64("step_size", c.StepSize),
		zap.Float64s("vector", c.Vector))
	return c, nil
}

func (r *Runner) estimate(x mat.Matrix) (*johansen.Result, error) {
	if r.cache == nil {
		return johansen.Estimate(x, r.cfg.Lags, r.cfg.Significance)
	}
	return r.cache.Estimate(x, r.cfg.Lags, r.cfg.Significance)
}

// Run calibrates on the calibration window and trades the backtest window.
// Observations are processed strictly in time order.
func (r *Runner) Run(prices *models.PriceMatrix) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	r.logger.Info("backtest started",
		zap.String("run_id", runID),
		zap.Strings("symbols", prices.Symbols),
		zap.String("reference", r.cfg.ReferenceMode))

	cal, err := r.Calibrate(prices)
	if err != nil {
		return nil, err
	}

	daily := signal.Window(prices, r.cfg.BacktestStart, r.cfg.BacktestEnd)
	series, err := signal.Project(daily, cal.Vector)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("backtest: %w", ErrEmptyWindow)
	}

	res := &Result{
		RunID:       runID,
		Symbols:     prices.Symbols,
		Calibration: cal,
		Steps:       make([]Step, 0, series.Len()),
	}

	book := pnl.NewBook(prices.Symbols)
	held := make([]int64, len(prices.Symbols))
	window := newRollingWindow(cal.Signal.Values, rollingLength(cal.HalfLife))

	var state scaling.State
	row := 0
	for i, ts := range series.Index {
		for !daily.Index[row].Equal(ts) {
			row++
		}
		value := series.Values[i]

		reference, stepSize := cal.Reference, cal.StepSize
		if r.cfg.ReferenceMode == config.ReferenceRolling {
			window.push(value)
			reference, stepSize = window.bands(r.cfg.BandMultiplier)
			if !(stepSize > 0) {
				// flat window, fall back to the calibration bands
				reference, stepSize = cal.Reference, cal.StepSize
			}
		}

		var out scaling.Output
		before := state.Level
		state, out = state.Step(value, reference, stepSize, r.cfg.Limit)
		if state.Level != before {
			r.logger.Debug("scaling level changed",
				zap.Time("time", ts),
				zap.Int("from", before),
				zap.Int("to", state.Level))
		}

		step := Step{
			Timestamp:  ts,
			Signal:     value,
			Reference:  reference,
			StepSize:   stepSize,
			Band:       out,
			Prices:     append([]float64(nil), daily.Values[row]...),
			Shares:     make([]int64, len(held)),
			Fills:      make([]int64, len(held)),
			Realized:   make([]decimal.Decimal, len(held)),
			Unrealized: make([]decimal.Decimal, len(held)),
		}

		marks := make(map[string]decimal.Decimal, len(held))
		for j, sym := range prices.Symbols {
			price := decimal.NewFromFloat(step.Prices[j])
			marks[sym] = price

			target := r.targetShares(out.Level, cal.Vector[j])
			delta := target - held[j]
			held[j] = target
			step.Shares[j] = target
			step.Fills[j] = delta

			acct := book.Account(sym)
			if delta != 0 {
				acct = book.Apply(sym, pnl.Fill{
					Timestamp: ts,
					Quantity:  decimal.NewFromInt(delta),
					Price:     price,
				})
				res.TradeCount++
			}
			step.Realized[j] = acct.RealizedPnL
			step.Unrealized[j] = acct.UnrealizedPnL(price)
		}
		step.RealizedTotal = book.Realized()
		step.UnrealizedTotal = book.Unrealized(marks)
		step.Total = step.RealizedTotal.Add(step.UnrealizedTotal)
		res.Steps = append(res.Steps, step)
	}

	last := res.Steps[len(res.Steps)-1]
	for _, sym := range prices.Symbols {
		res.Positions = append(res.Positions, Position{
			Symbol:  sym,
			Account: book.Account(sym),
			Fills:   book.Fills(sym),
		})
	}
	res.RealizedPnL = last.RealizedTotal
	res.UnrealizedPnL = last.UnrealizedTotal
	res.TotalPnL = last.Total

	r.logger.Info("backtest complete",
		zap.String("run_id", runID),
		zap.Int("steps", len(res.Steps)),
		zap.Int("trades", res.TradeCount),
		zap.String("realized_pnl", res.RealizedPnL.StringFixed(2)),
		zap.String("total_pnl", res.TotalPnL.StringFixed(2)))
	return res, nil
}

// targetShares converts a level into whole shares of one security:
// trunc(direction · level · component · trade scale). The default direction
// of -1 inverts the plain level · component · scale sizing, so a spread above
// its reference (positive level) is sold. Direction 1 gives the plain formula.
func (r *Runner) targetShares(level int, component float64) int64 {
	return int64(math.Trunc(r.cfg.Direction * float64(level) * component * r.cfg.TradeScale))
}

func rollingLength(halfLife int) int {
	if halfLife < 2 {
		return 2
	}
	return halfLife
}

// rollingWindow keeps the trailing n signal values
type rollingWindow struct {
	values []float64
	n      int
}

func newRollingWindow(history []float64, n int) *rollingWindow {
	w := &rollingWindow{n: n}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	w.values = append(w.values, history...)
	return w
}

func (w *rollingWindow) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.n {
		w.values = w.values[len(w.values)-w.n:]
	}
}

func (w *rollingWindow) bands(multiplier float64) (float64, float64) {
	mean, std := stat.MeanStdDev(w.values, nil)
	return mean, multiplier * std
}
