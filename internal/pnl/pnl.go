// Package pnl tracks positions at weighted-average cost.
package pnl

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrFlatPosition is returned when an average price is requested with no position
var ErrFlatPosition = errors.New("no open position")

// Fill is a signed execution: positive quantities buy, negative quantities sell
type Fill struct {
	Timestamp time.Time       `json:"timestamp"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Account is a position with its total cost basis and cumulative realized P&L.
// Cost is zero whenever Quantity is zero.
type Account struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// AddFill returns the account after f. A fill against the position is split
// into a closing leg, realized at the average cost, and an opening leg that
// starts a new basis at the fill price.
func (a Account) AddFill(f Fill) Account {
	if f.Quantity.IsZero() {
		return a
	}
	if a.Quantity.IsZero() {
		a.Quantity = f.Quantity
		a.Cost = f.Quantity.Mul(f.Price)
		return a
	}

	closing := decimal.Zero
	if a.Quantity.Sign() != f.Quantity.Sign() {
		closing = decimal.Min(a.Quantity.Abs(), f.Quantity.Abs())
		if f.Quantity.IsNegative() {
			closing = closing.Neg()
		}
	}
	opening := f.Quantity.Sub(closing)

	closingCost := decimal.Zero
	switch {
	case closing.Equal(a.Quantity.Neg()):
		closingCost = a.Cost.Neg()
	case !closing.IsZero():
		closingCost = closing.Mul(a.Cost).Div(a.Quantity)
	}

	a.RealizedPnL = a.RealizedPnL.Add(closingCost.Sub(closing.Mul(f.Price)))
	a.Quantity = a.Quantity.Add(f.Quantity)
	a.Cost = a.Cost.Add(opening.Mul(f.Price)).Add(closingCost)
	if a.Quantity.IsZero() {
		a.Cost = decimal.Zero
	}
	return a
}

// AveragePrice is cost per unit of the open position
func (a Account) AveragePrice() (decimal.Decimal, error) {
	if a.Quantity.IsZero() {
		return decimal.Zero, ErrFlatPosition
	}
	return a.Cost.Div(a.Quantity), nil
}

// IsFlat reports whether there is no open position
func (a Account) IsFlat() bool {
	return a.Quantity.IsZero()
}

func (a Account) MarketValue(price decimal.Decimal) decimal.Decimal {
	return a.Quantity.Mul(price)
}

func (a Account) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return a.MarketValue(price).Sub(a.Cost)
}

func (a Account) TotalPnL(price decimal.Decimal) decimal.Decimal {
	return a.RealizedPnL.Add(a.UnrealizedPnL(price))
}

// Book keeps one account per symbol in a fixed order
type Book struct {
	symbols  []string
	accounts map[string]Account
	fills    map[string][]Fill
}

// NewBook opens flat accounts for symbols
func NewBook(symbols []string) *Book {
	b := &Book{
		symbols:  append([]string(nil), symbols...),
		accounts: make(map[string]Account, len(symbols)),
		fills:    make(map[string][]Fill, len(symbols)),
	}
	for _, s := range symbols {
		b.accounts[s] = Account{}
	}
	return b
}

// Symbols returns the book's symbols in order
func (b *Book) Symbols() []string {
	return b.symbols
}

// Apply books a fill on symbol, opening the account on first use
func (b *Book) Apply(symbol string, f Fill) Account {
	acct, ok := b.accounts[symbol]
	if !ok {
		b.symbols = append(b.symbols, symbol)
	}
	acct = acct.AddFill(f)
	b.accounts[symbol] = acct
	if !f.Quantity.IsZero() {
		b.fills[symbol] = append(b.fills[symbol], f)
	}
	return acct
}

// Account returns the current account for symbol
func (b *Book) Account(symbol string) Account {
	return b.accounts[symbol]
}

// Fills returns the non-zero fills applied to symbol, in order
func (b *Book) Fills(symbol string) []Fill {
	return b.fills[symbol]
}

// Realized sums realized P&L across accounts
func (b *Book) Realized() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.symbols {
		total = total.Add(b.accounts[s].RealizedPnL)
	}
	return total
}

// Unrealized sums unrealized P&L at prices. Flat accounts need no price.
func (b *Book) Unrealized(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.symbols {
		acct := b.accounts[s]
		if acct.IsFlat() {
			continue
		}
		total = total.Add(acct.UnrealizedPnL(prices[s]))
	}
	return total
}
