package types

// PnL returns the position's unrealized profit/loss against the given
// market price, in the same unsigned fixed-point unit as Price. A Buy
// position realizes against the sell side of the quote (what it would
// fetch if closed now); a Sell position realizes against the buy side.
// Flat positions carry no exposure.
func (p Position) PnL(price Price) int64 {
	size := int64(p.Size)
	switch p.Direction {
	case DirectionBuy:
		return (int64(price.SellPrice) - int64(p.OpenRealPrice)) * size
	case DirectionSell:
		return (int64(p.OpenRealPrice) - int64(price.BuyPrice)) * size
	default:
		return 0
	}
}

// FundingFee returns the position's funding-fee accrual contribution for
// one cascade evaluation: notional exposure scaled by the market's
// funding-fee rate, applied against the position. The exact accrual
// schedule and sign convention for cross-chain funding settlement is an
// external, chain-specific concern (see handle_fund_fee in DESIGN.md); this
// gives the cascade a stable, order-preserving estimate between funding
// ticks so forced-close ordering does not starve on the deferred detail.
func (p Position) FundingFee(m Market) int64 {
	if p.Direction == DirectionFlat {
		return 0
	}
	notional := int64(p.Size) * int64(m.OpeningPrice)
	fee := notional * int64(m.FundFee) / int64(DENOMINATOR)
	if p.Direction == DirectionSell {
		return fee
	}
	return -fee
}

// AccountDynamic is the derived per-account summary published by the
// cascade after each evaluation.
type AccountDynamic struct {
	Profit           int64
	Equity           int64
	MarginPercentage float64
	ProfitRate       float64
}

// PositionDynamic is the derived per-position summary published by the
// cascade after each evaluation.
type PositionDynamic struct {
	ProfitRate float64
}
