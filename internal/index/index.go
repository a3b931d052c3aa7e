package index

import (
	"sync"

	"scale-bot/pkg/types"
)

// positionSet is a concurrency-safe set of position keys belonging to one
// account. It backs positions_by_account's secondary index so a cascade
// sweep can read "every position for account A" in O(positions-in-account)
// without touching any other account's shard.
type positionSet struct {
	mu  sync.RWMutex
	ids map[string]types.Address
}

func newPositionSet() *positionSet {
	return &positionSet{ids: make(map[string]types.Address)}
}

func (s *positionSet) add(id types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id.Key()] = id
}

func (s *positionSet) remove(id types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id.Key())
}

func (s *positionSet) snapshot() []types.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Address, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, id)
	}
	return out
}

// symbolSet is a concurrency-safe set of market addresses subscribed to a
// price symbol.
type symbolSet struct {
	mu   sync.RWMutex
	ids  map[string]types.Address
}

func newSymbolSet() *symbolSet {
	return &symbolSet{ids: make(map[string]types.Address)}
}

func (s *symbolSet) add(id types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id.Key()] = id
}

func (s *symbolSet) remove(id types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id.Key())
}

func (s *symbolSet) snapshot() []types.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Address, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, id)
	}
	return out
}

// Index is the engine's in-memory concurrent view of chain state. Every
// field is a sharded map or a per-key-locked set: no single lock ever
// guards the whole structure, so the scheduler's readers never serialize
// against ingest's writers on an unrelated key.
type Index struct {
	marketByID  *ShardedMap[types.Market]
	accountByID *ShardedMap[types.Account]

	// positionByKey is keyed by "<accountKey>\x00<positionKey>".
	positionByKey      *ShardedMap[types.Position]
	positionsByAccount *ShardedMap[*positionSet]

	priceByMarket *ShardedMap[types.Price]

	marketsBySymbol *ShardedMap[*symbolSet]

	accountDynamic  *ShardedMap[types.AccountDynamic]
	positionDynamic *ShardedMap[types.PositionDynamic]
}

// New constructs an empty Index.
func New() *Index {
	return &Index{
		marketByID:         NewShardedMap[types.Market](),
		accountByID:        NewShardedMap[types.Account](),
		positionByKey:      NewShardedMap[types.Position](),
		positionsByAccount: NewShardedMap[*positionSet](),
		priceByMarket:      NewShardedMap[types.Price](),
		marketsBySymbol:    NewShardedMap[*symbolSet](),
		accountDynamic:     NewShardedMap[types.AccountDynamic](),
		positionDynamic:    NewShardedMap[types.PositionDynamic](),
	}
}

func positionKey(accountID, positionID types.Address) string {
	return accountID.Key() + "\x00" + positionID.Key()
}

// UpsertMarket inserts or replaces a market and keeps markets_by_symbol
// consistent.
func (ix *Index) UpsertMarket(m types.Market) {
	ix.marketByID.Set(m.ID.Key(), m)
	set, ok := ix.marketsBySymbol.Get(m.Symbol)
	if !ok {
		set = newSymbolSet()
		ix.marketsBySymbol.Set(m.Symbol, set)
	}
	set.add(m.ID)
}

// RemoveMarket deletes a market and its markets_by_symbol membership.
func (ix *Index) RemoveMarket(id types.Address, symbol string) {
	ix.marketByID.Delete(id.Key())
	if set, ok := ix.marketsBySymbol.Get(symbol); ok {
		set.remove(id)
	}
}

// Market looks up a market by address.
func (ix *Index) Market(id types.Address) (types.Market, bool) {
	return ix.marketByID.Get(id.Key())
}

// MarketsForSymbol returns every market subscribed to a price symbol.
func (ix *Index) MarketsForSymbol(symbol string) []types.Address {
	set, ok := ix.marketsBySymbol.Get(symbol)
	if !ok {
		return nil
	}
	return set.snapshot()
}

// UpsertAccount inserts or replaces an account.
func (ix *Index) UpsertAccount(a types.Account) {
	ix.accountByID.Set(a.ID.Key(), a)
}

// RemoveAccount deletes an account.
func (ix *Index) RemoveAccount(id types.Address) {
	ix.accountByID.Delete(id.Key())
}

// Account looks up an account by address.
func (ix *Index) Account(id types.Address) (types.Account, bool) {
	return ix.accountByID.Get(id.Key())
}

// AllAccountIDs returns every known account address. Used by the
// liquidation scheduler's producer to drive each sweep.
func (ix *Index) AllAccountIDs() []types.Address {
	var out []types.Address
	ix.accountByID.Range(func(_ string, a types.Account) bool {
		out = append(out, a.ID)
		return true
	})
	return out
}

// AllMarketIDs returns every known market address. Used by the
// liquidation scheduler's opening-price tick.
func (ix *Index) AllMarketIDs() []types.Address {
	var out []types.Address
	ix.marketByID.Range(func(_ string, m types.Market) bool {
		out = append(out, m.ID)
		return true
	})
	return out
}

// UpsertPosition inserts or replaces a position under its account.
func (ix *Index) UpsertPosition(p types.Position) {
	ix.positionByKey.Set(positionKey(p.AccountID, p.ID), p)
	set, ok := ix.positionsByAccount.Get(p.AccountID.Key())
	if !ok {
		set = newPositionSet()
		ix.positionsByAccount.Set(p.AccountID.Key(), set)
	}
	set.add(p.ID)
}

// RemovePosition deletes a position from the active index.
func (ix *Index) RemovePosition(accountID, positionID types.Address) {
	ix.positionByKey.Delete(positionKey(accountID, positionID))
	if set, ok := ix.positionsByAccount.Get(accountID.Key()); ok {
		set.remove(positionID)
	}
}

// Position looks up a single position.
func (ix *Index) Position(accountID, positionID types.Address) (types.Position, bool) {
	return ix.positionByKey.Get(positionKey(accountID, positionID))
}

// PositionsForAccount returns every live position belonging to an
// account, in O(positions-in-account).
func (ix *Index) PositionsForAccount(accountID types.Address) []types.Position {
	set, ok := ix.positionsByAccount.Get(accountID.Key())
	if !ok {
		return nil
	}
	ids := set.snapshot()
	out := make([]types.Position, 0, len(ids))
	for _, id := range ids {
		if p, ok := ix.positionByKey.Get(positionKey(accountID, id)); ok {
			out = append(out, p)
		}
	}
	return out
}

// SetPrice publishes a whole-struct price replacement. Readers racing a
// publish see either the old or new value, never a torn one, because Go
// map assignment under the shard's lock is the only mutation.
func (ix *Index) SetPrice(marketID types.Address, p types.Price) {
	ix.priceByMarket.Set(marketID.Key(), p)
}

// Price looks up the current derived price for a market.
func (ix *Index) Price(marketID types.Address) (types.Price, bool) {
	return ix.priceByMarket.Get(marketID.Key())
}

// SetAccountDynamic publishes the cascade's derived per-account summary.
func (ix *Index) SetAccountDynamic(accountID types.Address, d types.AccountDynamic) {
	ix.accountDynamic.Set(accountID.Key(), d)
}

// AccountDynamic reads the derived per-account summary.
func (ix *Index) AccountDynamic(accountID types.Address) (types.AccountDynamic, bool) {
	return ix.accountDynamic.Get(accountID.Key())
}

// SetPositionDynamic publishes the cascade's derived per-position summary.
func (ix *Index) SetPositionDynamic(positionID types.Address, d types.PositionDynamic) {
	ix.positionDynamic.Set(positionID.Key(), d)
}

// PositionDynamic reads the derived per-position summary.
func (ix *Index) PositionDynamic(positionID types.Address) (types.PositionDynamic, bool) {
	return ix.positionDynamic.Get(positionID.Key())
}
