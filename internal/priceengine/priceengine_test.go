package priceengine

import (
	"testing"

	"scale-bot/pkg/types"
)

func TestDeriveAtOpeningPrice(t *testing.T) {
	t.Parallel()
	m := types.Market{OpeningPrice: 20000}

	p := Derive(m, 20000)
	if p.Spread != 60 {
		t.Errorf("Spread = %d, want 60", p.Spread)
	}
	if p.BuyPrice != 20030 {
		t.Errorf("BuyPrice = %d, want 20030", p.BuyPrice)
	}
	if p.SellPrice != 19970 {
		t.Errorf("SellPrice = %d, want 19970", p.SellPrice)
	}
}

func TestDeriveOnFivePercentMove(t *testing.T) {
	t.Parallel()
	m := types.Market{OpeningPrice: 20000}

	p := Derive(m, 21000)
	if got := SpreadFeeBps(m, 21000); got != 500 {
		t.Errorf("SpreadFeeBps = %d, want 500", got)
	}
	if p.Spread != 1050 {
		t.Errorf("Spread = %d, want 1050", p.Spread)
	}
	if p.BuyPrice != 21525 {
		t.Errorf("BuyPrice = %d, want 21525", p.BuyPrice)
	}
	if p.SellPrice != 20475 {
		t.Errorf("SellPrice = %d, want 20475", p.SellPrice)
	}
}

func TestSpreadFeeBpsCapsBeyondTenPercent(t *testing.T) {
	t.Parallel()
	m := types.Market{OpeningPrice: 20000}

	if got := SpreadFeeBps(m, 25000); got != 150 {
		t.Errorf("SpreadFeeBps(25%% move) = %d, want 150", got)
	}
}

func TestSpreadFeeManualOverride(t *testing.T) {
	t.Parallel()
	m := types.Market{OpeningPrice: 20000, SpreadFeeManual: true, SpreadFee: 999}

	if got := SpreadFeeBps(m, 50000); got != 999 {
		t.Errorf("SpreadFeeBps with manual override = %d, want 999", got)
	}
}
