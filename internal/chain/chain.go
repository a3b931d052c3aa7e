// Package chain names the external on-chain collaborator interfaces this
// engine calls through: the oracle-price write path and the
// force-close/funding-settlement write path. spec.md §1 scopes the
// concrete RPC/transaction client out of this module — only the
// interfaces the engine depends on live here.
package chain

import (
	"context"

	"scale-bot/pkg/types"
)

// TxID is an opaque on-chain transaction identifier returned by a
// successful call.
type TxID string

// Oracle is the on-chain oracle-module write path the price pusher calls
// (spec.md §4.6, §6).
type Oracle interface {
	UpdatePrice(ctx context.Context, feedAddress string, price uint64) error
}

// Positions is the on-chain write path the liquidation scheduler's
// workers call to force-close a position (spec.md §4.4, §6).
type Positions interface {
	ClosePosition(ctx context.Context, positionID types.Address, force bool) (TxID, error)
}

// FundingSettler settles one account's periodic funding-fee accrual. The
// accrual math and exact settlement call shape are deferred to the
// chain-specific client (spec.md §9's open question on handle_fund_fee);
// the scheduler only drives the cadence and calls through this interface.
type FundingSettler interface {
	SettleFunding(ctx context.Context, accountID types.Address) error
}
