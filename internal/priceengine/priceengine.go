// Package priceengine computes a market's derived buy/sell quote from a
// raw symbol tick and the market's spread parameters.
package priceengine

import (
	"time"

	"scale-bot/pkg/types"
)

// now is overridable in tests; production code always uses time.Now.
var now = func() int64 { return time.Now().Unix() }

// SpreadFeeBps returns the spread, in basis points over types.DENOMINATOR,
// that a market charges against a given real price. A manually-overridden
// spread_fee is used verbatim; otherwise the fee scales with how far the
// real price has moved from the market's opening price:
//
//	chg ≤ 300 bps    → 30 bps flat
//	300 < chg ≤ 1000 → chg bps (tracks the move 1:1)
//	chg > 1000       → 150 bps flat (caps the spread once the move looks
//	                   like an outlier rather than a real repricing)
func SpreadFeeBps(m types.Market, realPrice uint64) uint64 {
	if m.SpreadFeeManual {
		return m.SpreadFee
	}
	if m.OpeningPrice == 0 {
		return 30
	}
	var diff uint64
	if realPrice > m.OpeningPrice {
		diff = realPrice - m.OpeningPrice
	} else {
		diff = m.OpeningPrice - realPrice
	}
	chg := (diff * types.DENOMINATOR) / m.OpeningPrice
	switch {
	case chg <= 300:
		return 30
	case chg <= 1000:
		return chg
	default:
		return 150
	}
}

// Derive computes the full Price record for a market given a raw real
// price. Callers must not call this for a non-positive tick; that case is
// handled by the ingest layer (see internal/ingest), which drops it before
// ever reaching here.
func Derive(m types.Market, realPrice uint64) types.Price {
	spreadBps := SpreadFeeBps(m, realPrice)
	spreadPrice := spreadBps * realPrice / types.DENOMINATOR
	half := spreadPrice * types.DENOMINATOR / 2

	return types.Price{
		RealPrice:  realPrice,
		Spread:     spreadPrice,
		BuyPrice:   (realPrice*types.DENOMINATOR + half) / types.DENOMINATOR,
		SellPrice:  (realPrice*types.DENOMINATOR - half) / types.DENOMINATOR,
		UpdateTime: now(),
	}
}
