package index

import (
	"sync"
	"testing"

	"scale-bot/pkg/types"
)

func addr(t *testing.T, hex string) types.Address {
	t.Helper()
	a, err := types.AddressFromHex(hex)
	if err != nil {
		t.Fatalf("AddressFromHex(%q): %v", hex, err)
	}
	return a
}

func TestUpsertMarketUpdatesSymbolIndex(t *testing.T) {
	t.Parallel()
	ix := New()

	m1 := addr(t, "0x0000000000000000000000000000000000000001")
	ix.UpsertMarket(types.Market{ID: m1, Symbol: "BTC"})

	markets := ix.MarketsForSymbol("BTC")
	if len(markets) != 1 || markets[0].Key() != m1.Key() {
		t.Errorf("MarketsForSymbol(BTC) = %v, want [%v]", markets, m1)
	}
}

func TestRemoveMarketClearsSymbolIndex(t *testing.T) {
	t.Parallel()
	ix := New()

	m1 := addr(t, "0x0000000000000000000000000000000000000001")
	ix.UpsertMarket(types.Market{ID: m1, Symbol: "BTC"})
	ix.RemoveMarket(m1, "BTC")

	if _, ok := ix.Market(m1); ok {
		t.Error("market should be gone")
	}
	if markets := ix.MarketsForSymbol("BTC"); len(markets) != 0 {
		t.Errorf("MarketsForSymbol(BTC) = %v, want empty", markets)
	}
}

func TestPositionsForAccountScopesCorrectly(t *testing.T) {
	t.Parallel()
	ix := New()

	acctA := addr(t, "0x00000000000000000000000000000000000000aa")
	acctB := addr(t, "0x00000000000000000000000000000000000000bb")
	pos1 := addr(t, "0x000000000000000000000000000000000000cc01")
	pos2 := addr(t, "0x000000000000000000000000000000000000cc02")

	ix.UpsertPosition(types.Position{ID: pos1, AccountID: acctA})
	ix.UpsertPosition(types.Position{ID: pos2, AccountID: acctB})

	got := ix.PositionsForAccount(acctA)
	if len(got) != 1 || got[0].ID.Key() != pos1.Key() {
		t.Errorf("PositionsForAccount(A) = %v, want [pos1]", got)
	}
}

func TestRemovePositionDropsFromAccountIndex(t *testing.T) {
	t.Parallel()
	ix := New()

	acctA := addr(t, "0x00000000000000000000000000000000000000aa")
	pos1 := addr(t, "0x000000000000000000000000000000000000cc01")

	ix.UpsertPosition(types.Position{ID: pos1, AccountID: acctA})
	ix.RemovePosition(acctA, pos1)

	if got := ix.PositionsForAccount(acctA); len(got) != 0 {
		t.Errorf("PositionsForAccount(A) = %v, want empty after remove", got)
	}
	if _, ok := ix.Position(acctA, pos1); ok {
		t.Error("position should be gone")
	}
}

func TestSetPriceReplacesWholeStruct(t *testing.T) {
	t.Parallel()
	ix := New()
	m1 := addr(t, "0x0000000000000000000000000000000000000001")

	ix.SetPrice(m1, types.Price{RealPrice: 100})
	ix.SetPrice(m1, types.Price{RealPrice: 200})

	p, ok := ix.Price(m1)
	if !ok || p.RealPrice != 200 {
		t.Errorf("Price = %+v, want RealPrice=200", p)
	}
}

func TestShardedMapConcurrentAccess(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i%26))
			sm.Set(key, i)
			sm.Get(key)
		}()
	}
	wg.Wait()

	if sm.Len() == 0 {
		t.Error("expected non-empty map after concurrent writes")
	}
}
