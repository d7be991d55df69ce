package services

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// RateTable converts provider crypto amounts to site balance (USD). Rates are
// static per process; the provider settles the real exchange, this table only
// values the credited amount.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

func defaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"SOL":  decimal.NewFromInt(150),
		"BTC":  decimal.NewFromInt(65000),
		"ETH":  decimal.NewFromInt(3000),
		"LTC":  decimal.NewFromInt(80),
		"TRX":  decimal.NewFromFloat(0.12),
		"USDT": decimal.NewFromInt(1),
		"USDC": decimal.NewFromInt(1),
	}
}

func NewRateTable() *RateTable {
	return &RateTable{rates: defaultRates()}
}

// SetRate overrides or adds the USD rate for a currency.
func (t *RateTable) SetRate(currency string, usdRate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[strings.ToUpper(currency)] = decimal.NewFromFloat(usdRate)
}

// ConvertToUSD values amount of currency in USD, rounded to cents. ok is
// false for currencies without a rate.
func (t *RateTable) ConvertToUSD(amount float64, currency string) (float64, bool) {
	t.mu.RLock()
	rate, ok := t.rates[strings.ToUpper(currency)]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}

	usd := decimal.NewFromFloat(amount).Mul(rate).Round(2)
	return usd.InexactFloat64(), true
}
