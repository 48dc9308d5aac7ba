package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/TruWeaveTrader/cointeg/internal/pnl"
	"github.com/TruWeaveTrader/cointeg/internal/scaling"
)

// Result is the full record of one run
type Result struct {
	RunID       string       `json:"run_id"`
	Symbols     []string     `json:"symbols"`
	Calibration *Calibration `json:"calibration"`
	Steps       []Step       `json:"steps"`
	Positions   []Position   `json:"positions"`
	TradeCount  int          `json:"trade_count"`

	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

// Step is one backtest observation. Per-security slices follow Result.Symbols.
type Step struct {
	Timestamp time.Time      `json:"timestamp"`
	Signal    float64        `json:"signal"`
	Reference float64        `json:"reference"`
	StepSize  float64        `json:"step_size"`
	Band      scaling.Output `json:"band"`
	Prices    []float64      `json:"prices"`
	Shares    []int64        `json:"shares"`
	Fills     []int64        `json:"fills"`

	Realized        []decimal.Decimal `json:"realized"`
	Unrealized      []decimal.Decimal `json:"unrealized"`
	RealizedTotal   decimal.Decimal   `json:"realized_total"`
	UnrealizedTotal decimal.Decimal   `json:"unrealized_total"`
	Total           decimal.Decimal   `json:"total"`
}

// Position is the final state of one security's account
type Position struct {
	Symbol  string      `json:"symbol"`
	Account pnl.Account `json:"account"`
	Fills   []pnl.Fill  `json:"fills"`
}

// Levels returns the scaling level series
func (r *Result) Levels() []int {
	out := make([]int, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Band.Level
	}
	return out
}

// Shares returns the share trajectory of security j
func (r *Result) Shares(j int) []int64 {
	out := make([]int64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Shares[j]
	}
	return out
}
