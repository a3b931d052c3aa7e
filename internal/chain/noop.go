package chain

import (
	"context"
	"log/slog"

	"scale-bot/pkg/types"
)

// Noop implements Oracle, Positions, and FundingSettler by logging each
// call and returning success. It lets the engine and its tests run
// end-to-end without a live chain RPC client, matching spec.md §1's
// scoping of the chain client as an external collaborator.
type Noop struct {
	Log *slog.Logger
}

func (n Noop) UpdatePrice(ctx context.Context, feedAddress string, price uint64) error {
	n.Log.Info("chain(noop): update_price", "feed", feedAddress, "price", price)
	return nil
}

func (n Noop) ClosePosition(ctx context.Context, positionID types.Address, force bool) (TxID, error) {
	n.Log.Info("chain(noop): close_position", "position", positionID, "force", force)
	return TxID("noop-" + positionID.String()), nil
}

func (n Noop) SettleFunding(ctx context.Context, accountID types.Address) error {
	n.Log.Debug("chain(noop): settle_funding", "account", accountID)
	return nil
}
