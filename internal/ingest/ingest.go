// Package ingest runs the single-consumer watcher that applies inbound
// chain-state messages to the Index and Store.
package ingest

import (
	"context"
	"log/slog"

	"scale-bot/internal/index"
	"scale-bot/internal/priceengine"
	"scale-bot/internal/store"
	"scale-bot/pkg/types"
)

// Watcher applies every inbound message to the Index from its single
// goroutine, so per-address update order equals arrival order and no
// cross-index lock is needed. The Index has other writers outside messages:
// the cascade publishes the dynamic summaries, and the scheduler's
// opening-price tick re-upserts markets when an opening-price source is set.
type Watcher struct {
	index *index.Index
	store *store.Store
	log   *slog.Logger

	queue *unboundedQueue[types.Message]
}

// New constructs a Watcher wired to the given Index and Store.
func New(ix *index.Index, st *store.Store, log *slog.Logger) *Watcher {
	return &Watcher{
		index: ix,
		store: st,
		log:   log,
		queue: newUnboundedQueue[types.Message](),
	}
}

// Submit enqueues an inbound message. Never blocks; safe to call from any
// number of producer goroutines (e.g. the chain-event subscriber).
func (w *Watcher) Submit(msg types.Message) {
	w.queue.Push(msg)
}

// Run consumes messages until ctx is cancelled, then applies whatever was
// already queued before returning.
func (w *Watcher) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		w.queue.Close()
		close(done)
	}()

	for {
		msg, ok := w.queue.Pop()
		if !ok {
			<-done
			return
		}
		w.apply(msg)
	}
}

func (w *Watcher) apply(msg types.Message) {
	switch msg.State.Tag {
	case types.StateMarket:
		w.applyMarket(msg)
	case types.StateAccount:
		w.applyAccount(msg)
	case types.StatePosition:
		w.applyPosition(msg)
	case types.StatePrice:
		w.applyPrice(msg)
	default:
		w.log.Warn("ingest: message carries no state", "address", msg.Address)
	}
}

func (w *Watcher) applyMarket(msg types.Message) {
	m := msg.State.Market
	if m == nil {
		w.log.Warn("ingest: market message missing payload", "address", msg.Address)
		return
	}
	if msg.Status == types.StatusDeleted {
		w.index.RemoveMarket(m.ID, m.Symbol)
		if err := w.store.SaveAsHistory(types.StateMarket, *m, m.ID); err != nil {
			w.log.Error("ingest: move market to history", "error", err, "address", msg.Address)
		}
		return
	}
	w.index.UpsertMarket(*m)
	if err := w.store.SaveToActive(types.StateMarket, *m, m.ID); err != nil {
		w.log.Error("ingest: persist market", "error", err, "address", msg.Address)
	}
	w.log.Debug("ingest: applied market", "address", msg.Address, "symbol", m.Symbol)
}

func (w *Watcher) applyAccount(msg types.Message) {
	a := msg.State.Account
	if a == nil {
		w.log.Warn("ingest: account message missing payload", "address", msg.Address)
		return
	}
	if msg.Status == types.StatusDeleted {
		w.index.RemoveAccount(a.ID)
		if err := w.store.SaveAsHistory(types.StateAccount, *a, a.ID); err != nil {
			w.log.Error("ingest: move account to history", "error", err, "address", msg.Address)
		}
		return
	}
	w.index.UpsertAccount(*a)
	if err := w.store.SaveToActive(types.StateAccount, *a, a.ID); err != nil {
		w.log.Error("ingest: persist account", "error", err, "address", msg.Address)
	}
	w.log.Debug("ingest: applied account", "address", msg.Address)
}

func (w *Watcher) applyPosition(msg types.Message) {
	p := msg.State.Position
	if p == nil {
		w.log.Warn("ingest: position message missing payload", "address", msg.Address)
		return
	}
	terminal := msg.Status == types.StatusDeleted ||
		p.Status == types.PositionNormalClosing ||
		p.Status == types.PositionForcedClosing
	if terminal {
		w.index.RemovePosition(p.AccountID, p.ID)
		if err := w.store.SaveAsHistory(types.StatePosition, *p, p.AccountID, p.ID); err != nil {
			w.log.Error("ingest: move position to history", "error", err, "address", msg.Address)
		}
		return
	}
	w.index.UpsertPosition(*p)
	if err := w.store.SaveToActive(types.StatePosition, *p, p.AccountID, p.ID); err != nil {
		w.log.Error("ingest: persist position", "error", err, "address", msg.Address)
	}
	w.log.Debug("ingest: applied position", "address", msg.Address)
}

func (w *Watcher) applyPrice(msg types.Message) {
	raw := msg.State.Price
	if raw == nil {
		w.log.Warn("ingest: price message missing payload", "address", msg.Address)
		return
	}
	if raw.Price <= 0 {
		w.log.Warn("ingest: dropped non-positive price tick", "symbol", raw.Symbol, "price", raw.Price)
		return
	}
	realPrice := uint64(raw.Price)
	for _, marketID := range w.index.MarketsForSymbol(raw.Symbol) {
		m, ok := w.index.Market(marketID)
		if !ok {
			continue
		}
		w.index.SetPrice(marketID, priceengine.Derive(m, realPrice))
	}
}
