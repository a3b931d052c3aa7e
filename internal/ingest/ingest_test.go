package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"scale-bot/internal/index"
	"scale-bot/internal/store"
	"scale-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addr(t *testing.T, hex string) types.Address {
	t.Helper()
	a, err := types.AddressFromHex(hex)
	if err != nil {
		t.Fatalf("AddressFromHex(%q): %v", hex, err)
	}
	return a
}

func newTestWatcher(t *testing.T) (*Watcher, *index.Index) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ix := index.New()
	return New(ix, st, testLogger()), ix
}

func runAndDrain(t *testing.T, w *Watcher, msgs ...types.Message) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	for _, m := range msgs {
		w.Submit(m)
	}
	// Give the single consumer a moment to drain synchronously-submitted
	// messages before we tear it down.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
}

func TestApplyMarketThenPriceDerivesQuote(t *testing.T) {
	t.Parallel()
	w, ix := newTestWatcher(t)

	marketID := addr(t, "0x0000000000000000000000000000000000000001")
	runAndDrain(t, w,
		types.Message{
			Address: marketID,
			Status:  types.StatusNormal,
			State: types.State{
				Tag:    types.StateMarket,
				Market: &types.Market{ID: marketID, Symbol: "BTC", OpeningPrice: 20000},
			},
		},
		types.Message{
			Address: marketID,
			Status:  types.StatusNormal,
			State: types.State{
				Tag:   types.StatePrice,
				Price: &types.OrgPrice{Symbol: "BTC", Price: 20000},
			},
		},
	)

	price, ok := ix.Price(marketID)
	if !ok {
		t.Fatal("expected a derived price to be published")
	}
	if price.RealPrice != 20000 || price.Spread != 60 || price.BuyPrice != 20030 || price.SellPrice != 19970 {
		t.Errorf("price = %+v, want real=20000 spread=60 buy=20030 sell=19970", price)
	}
}

func TestNonPositivePriceLeavesIndexUnchanged(t *testing.T) {
	t.Parallel()
	w, ix := newTestWatcher(t)

	marketID := addr(t, "0x0000000000000000000000000000000000000001")
	runAndDrain(t, w,
		types.Message{
			Address: marketID,
			Status:  types.StatusNormal,
			State: types.State{
				Tag:    types.StateMarket,
				Market: &types.Market{ID: marketID, Symbol: "BTC", OpeningPrice: 20000},
			},
		},
		types.Message{
			Address: marketID,
			Status:  types.StatusNormal,
			State: types.State{
				Tag:   types.StatePrice,
				Price: &types.OrgPrice{Symbol: "BTC", Price: 0},
			},
		},
	)

	if _, ok := ix.Price(marketID); ok {
		t.Error("non-positive price tick should never publish a Price")
	}
}

func TestDeletedPositionMovesToHistory(t *testing.T) {
	t.Parallel()
	w, ix := newTestWatcher(t)

	acct := addr(t, "0x00000000000000000000000000000000000000aa")
	pos := addr(t, "0x000000000000000000000000000000000000cc01")

	runAndDrain(t, w,
		types.Message{
			Address: pos,
			Status:  types.StatusNormal,
			State: types.State{
				Tag:      types.StatePosition,
				Position: &types.Position{ID: pos, AccountID: acct, Status: types.PositionNormal},
			},
		},
		types.Message{
			Address: pos,
			Status:  types.StatusDeleted,
			State: types.State{
				Tag:      types.StatePosition,
				Position: &types.Position{ID: pos, AccountID: acct, Status: types.PositionNormal},
			},
		},
	)

	if _, ok := ix.Position(acct, pos); ok {
		t.Error("deleted position should be removed from the active index")
	}

	var active, history int
	w.store.ScanPrefix(store.PrefixActive, types.StatePosition, func(store.RawEntry) error { active++; return nil })
	w.store.ScanPrefix(store.PrefixHistory, types.StatePosition, func(store.RawEntry) error { history++; return nil })
	if active != 0 || history != 1 {
		t.Errorf("store has %d active and %d history positions, want 0 and 1", active, history)
	}
}
