package store

import (
	"testing"

	"scale-bot/pkg/types"
)

func testMarket(t *testing.T) (types.Address, types.Market) {
	t.Helper()
	id, err := types.AddressFromHex("0x0000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("AddressFromHex: %v", err)
	}
	return id, types.Market{ID: id, Symbol: "BTC", OpeningPrice: 20000}
}

func TestSaveToActiveAndScan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	id, m := testMarket(t)
	if err := s.SaveToActive(types.StateMarket, m, id); err != nil {
		t.Fatalf("SaveToActive: %v", err)
	}

	var found int
	err = s.ScanPrefix(PrefixActive, types.StateMarket, func(e RawEntry) error {
		found++
		var got types.Market
		if err := e.Unmarshal(&got); err != nil {
			return err
		}
		if got.Symbol != "BTC" {
			t.Errorf("Symbol = %q, want BTC", got.Symbol)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScanPrefix: %v", err)
	}
	if found != 1 {
		t.Errorf("found %d entries, want 1", found)
	}
}

func TestSaveAsHistoryIsAtomicMove(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	id, m := testMarket(t)
	if err := s.SaveToActive(types.StateMarket, m, id); err != nil {
		t.Fatalf("SaveToActive: %v", err)
	}
	if err := s.SaveAsHistory(types.StateMarket, m, id); err != nil {
		t.Fatalf("SaveAsHistory: %v", err)
	}

	var activeCount, historyCount int
	s.ScanPrefix(PrefixActive, types.StateMarket, func(e RawEntry) error {
		activeCount++
		return nil
	})
	s.ScanPrefix(PrefixHistory, types.StateMarket, func(e RawEntry) error {
		historyCount++
		return nil
	})

	if activeCount != 0 {
		t.Errorf("active count = %d, want 0 after history move", activeCount)
	}
	if historyCount != 1 {
		t.Errorf("history count = %d, want 1 after history move", historyCount)
	}
}

func TestGetPositionHistoryListScopesToAccount(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	acctA, _ := types.AddressFromHex("0x00000000000000000000000000000000000000aa")
	acctB, _ := types.AddressFromHex("0x00000000000000000000000000000000000000bb")
	pos1, _ := types.AddressFromHex("0x000000000000000000000000000000000000cc01")
	pos2, _ := types.AddressFromHex("0x000000000000000000000000000000000000cc02")

	if err := s.SaveAsHistory(types.StatePosition, types.Position{ID: pos1}, acctA, pos1); err != nil {
		t.Fatalf("SaveAsHistory A: %v", err)
	}
	if err := s.SaveAsHistory(types.StatePosition, types.Position{ID: pos2}, acctB, pos2); err != nil {
		t.Fatalf("SaveAsHistory B: %v", err)
	}

	var count int
	err = s.GetPositionHistoryList(acctA, func(e RawEntry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("GetPositionHistoryList: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (only account A's position)", count)
	}
}
