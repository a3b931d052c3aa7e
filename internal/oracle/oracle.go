// Package oracle implements the debounced oracle pusher: it holds the
// latest raw tick per known feed symbol and pushes it to the chain's
// oracle module at a fixed cadence, absorbing burst ticks at the timer
// edge instead of writing on every tick (spec.md §4.6).
package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scale-bot/internal/chain"
	"scale-bot/pkg/types"
)

// Sink optionally records each successful push, e.g. to a metrics
// database. A nil Sink is a no-op, matching the original's mostly-stubbed
// influx integration (see DESIGN.md).
type Sink interface {
	RecordPush(symbol string, price uint64, updateTime int64)
}

type feedState struct {
	feedAddress string
	price       uint64
	updateTime  int64
}

// Pusher holds one feedState per known symbol and debounces writes to the
// chain oracle at Run's interval.
type Pusher struct {
	oracle chain.Oracle
	sink   Sink
	log    *slog.Logger

	mu    sync.Mutex
	feeds map[string]*feedState
}

// New constructs a Pusher pre-registered with a symbol→feed-address table
// (price_config.pyth_symbol[] in config, spec.md §6).
func New(o chain.Oracle, sink Sink, log *slog.Logger, symbolFeeds map[string]string) *Pusher {
	feeds := make(map[string]*feedState, len(symbolFeeds))
	for symbol, feedAddress := range symbolFeeds {
		feeds[symbol] = &feedState{feedAddress: feedAddress}
	}
	return &Pusher{
		oracle: o,
		sink:   sink,
		log:    log.With("component", "oracle"),
		feeds:  feeds,
	}
}

// OnTick updates the latest price for a known symbol. Unknown symbols are
// silently ignored, matching the original's recv_price.
func (p *Pusher) OnTick(raw types.OrgPrice) {
	if raw.Price <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.feeds[raw.Symbol]
	if !ok {
		return
	}
	f.price = uint64(raw.Price)
	f.updateTime = raw.UpdateTime
}

// Run pushes every known feed's latest price to the chain oracle,
// sequentially, every interval, until ctx is cancelled. A push failure is
// logged and not retried inline; the next tick re-pushes the latest value
// (idempotent — no accumulation), per spec.md §7's retry policy.
func (p *Pusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pushAll(ctx)
		}
	}
}

func (p *Pusher) pushAll(ctx context.Context) {
	p.mu.Lock()
	snapshot := make(map[string]feedState, len(p.feeds))
	for symbol, f := range p.feeds {
		snapshot[symbol] = *f
	}
	p.mu.Unlock()

	for symbol, f := range snapshot {
		if f.price == 0 {
			continue // never ticked; nothing to push yet
		}
		if err := p.oracle.UpdatePrice(ctx, f.feedAddress, f.price); err != nil {
			p.log.Error("update_price failed", "symbol", symbol, "feed", f.feedAddress, "error", err)
			continue
		}
		if p.sink != nil {
			p.sink.RecordPush(symbol, f.price, f.updateTime)
		}
	}
}
