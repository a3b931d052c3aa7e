// Package cascade implements the per-account cross-margin evaluation: it
// aggregates PnL across an account's positions and, once the account's
// margin ratio breaches the maintenance threshold, selects an ordered set
// of positions to force-close.
package cascade

import (
	"log/slog"
	"sort"

	"scale-bot/internal/index"
	"scale-bot/pkg/types"
)

// ForceClose is one position selected for a forced close, in the order it
// should be submitted to the chain client.
type ForceClose struct {
	AccountID  types.Address
	PositionID types.Address
	Reason     string // "independent-burst" or "full-cascade"
}

// sortEntry mirrors the sort_list rows the cascade sorts by profit.
type sortEntry struct {
	positionID types.Address
	profit     int64 // pnl_ff
	direction  types.Direction
	margin     uint64
}

// Evaluator runs the cascade against a shared Index.
type Evaluator struct {
	index     *index.Index
	log       *slog.Logger
	burstRate float64
}

// New constructs an Evaluator. burstRate is the maintenance-margin
// threshold (e.g. 0.05 for 5%).
func New(ix *index.Index, log *slog.Logger, burstRate float64) *Evaluator {
	return &Evaluator{index: ix, log: log, burstRate: burstRate}
}

// Evaluate runs one cascade pass for a single account and returns the
// force-closes it selected, in submission order. A missing account yields
// no work; a missing market or price for an individual position causes
// that position to be skipped, not the whole account.
func (e *Evaluator) Evaluate(accountID types.Address) []ForceClose {
	account, ok := e.index.Account(accountID)
	if !ok {
		return nil
	}
	positions := e.index.PositionsForAccount(accountID)

	var accountData types.AccountDynamic
	var plFull int64
	var fullEntries []sortEntry
	var closes []ForceClose

	for _, p := range positions {
		market, ok := e.index.Market(p.MarketID)
		if !ok {
			e.log.Warn("cascade: missing market for position", "position", p.ID, "market", p.MarketID)
			continue
		}
		price, ok := e.index.Price(p.MarketID)
		if !ok {
			e.log.Warn("cascade: missing price for position", "position", p.ID, "market", p.MarketID)
			continue
		}

		pl := p.PnL(price)
		ff := p.FundingFee(market)
		pnlFF := pl + ff

		accountData.Profit += pl
		accountData.Equity += pnlFF

		if p.Margin > 0 {
			e.index.SetPositionDynamic(p.ID, types.PositionDynamic{
				ProfitRate: float64(pl) / float64(p.Margin),
			})
		}

		switch p.PositionType {
		case types.PositionFull:
			plFull += pnlFF
			fullEntries = append(fullEntries, sortEntry{
				positionID: p.ID,
				profit:     pnlFF,
				direction:  p.Direction,
				margin:     p.Margin,
			})
		case types.PositionIndependent:
			if p.Margin > 0 && float64(pnlFF)/float64(p.Margin) < e.burstRate {
				closes = append(closes, ForceClose{
					AccountID:  accountID,
					PositionID: p.ID,
					Reason:     "independent-burst",
				})
			}
		}
	}

	closes = append(closes, e.fullCascade(account, plFull, fullEntries)...)

	accountData.Equity += int64(account.Balance)
	if account.MarginTotal > 0 {
		accountData.MarginPercentage = float64(accountData.Equity) / float64(account.MarginTotal)
		accountData.ProfitRate = float64(accountData.Profit) / float64(account.MarginTotal)
	}
	e.index.SetAccountDynamic(accountID, accountData)

	return closes
}

// fullCascade runs step 3 of the algorithm: if the account's full-margin
// equity is below the maintenance threshold, close winning positions
// first until the ratio recovers.
func (e *Evaluator) fullCascade(account types.Account, plFull int64, entries []sortEntry) []ForceClose {
	marginFull := account.MarginFullBuyTotal
	if account.MarginFullSellTotal > marginFull {
		marginFull = account.MarginFullSellTotal
	}
	if marginFull == 0 {
		return nil
	}
	equityFull := int64(account.Balance) + plFull
	if float64(equityFull)/float64(marginFull) >= e.burstRate {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].profit > entries[j].profit
	})

	buyTotal, sellTotal := account.MarginFullBuyTotal, account.MarginFullSellTotal
	runningEquity := equityFull

	var closes []ForceClose
	for _, s := range entries {
		closes = append(closes, ForceClose{
			AccountID:  account.ID,
			PositionID: s.positionID,
			Reason:     "full-cascade",
		})

		switch s.direction {
		case types.DirectionBuy:
			buyTotal = subSaturating(buyTotal, s.margin)
		case types.DirectionSell:
			sellTotal = subSaturating(sellTotal, s.margin)
		}
		newMarginFull := buyTotal
		if sellTotal > newMarginFull {
			newMarginFull = sellTotal
		}
		runningEquity += s.profit

		if newMarginFull == 0 || float64(runningEquity)/float64(newMarginFull) > e.burstRate {
			break
		}
	}
	return closes
}

func subSaturating(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
