// Package engine wires together the index, store, ingest watcher,
// cascade evaluator, liquidation scheduler, oracle pusher, and upstream
// price client into one running process (spec.md §1, §5).
//
// Lifecycle: New() → Start() → [runs until stopped] → Stop().
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scale-bot/internal/cascade"
	"scale-bot/internal/chain"
	"scale-bot/internal/config"
	"scale-bot/internal/index"
	"scale-bot/internal/ingest"
	"scale-bot/internal/oracle"
	"scale-bot/internal/priceclient"
	"scale-bot/internal/scheduler"
	"scale-bot/internal/store"
	"scale-bot/pkg/types"
)

// Chain bundles the external collaborators the engine calls through. A
// caller with no live chain client can pass chain.Noop{} for Oracle,
// Positions, and Funding; Opening may be left nil.
type Chain struct {
	Oracle    chain.Oracle
	Positions chain.Positions
	Funding   chain.FundingSettler
	Opening   scheduler.OpeningPriceSource // optional, may be nil
}

// Engine owns the lifecycle of every background goroutine in the process.
type Engine struct {
	cfg   config.Config
	log   *slog.Logger
	index *index.Index
	store *store.Store

	watcher   *ingest.Watcher
	evaluator *cascade.Evaluator
	sched     *scheduler.Scheduler
	pusher    *oracle.Pusher
	price     *priceclient.Client

	wg sync.WaitGroup

	cancelPrice  context.CancelFunc
	cancelSched  context.CancelFunc
	cancelOracle context.CancelFunc
	cancelIngest context.CancelFunc

	priceDone, schedDone, oracleDone, ingestDone chan struct{}
}

// priceTick is the wire shape the upstream feed sends, matching
// original_source's raw tick payload.
type priceTick struct {
	Symbol     string `json:"symbol"`
	Price      int64  `json:"price"`
	UpdateTime int64  `json:"update_time"`
}

// New opens the store and wires every component together. It does not
// start any goroutine; call Start for that.
func New(cfg config.Config, ch Chain, log *slog.Logger) (*Engine, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	ix := index.New()

	ev := cascade.New(ix, log, cfg.BurstRate)
	watcher := ingest.New(ix, st, log)

	sched := scheduler.New(ix, ev, ch.Positions, ch.Funding, ch.Opening, log, scheduler.Config{
		Workers:              cfg.Tasks,
		SweepInterval:        cfg.SweepInterval(),
		FundingTickInterval:  cfg.FundingTickInterval(),
		OpeningPriceInterval: cfg.OpeningPriceTickInterval(),
	})

	symbolFeeds := make(map[string]string, len(cfg.Price.PythSymbol))
	for _, s := range cfg.Price.PythSymbol {
		symbolFeeds[s.Symbol] = s.ID
	}
	var sink oracle.Sink
	if cfg.WritePriceToDB && cfg.Price.DB != nil {
		sink = oracle.LogSink{Log: log, Scale: 8}
	}
	pusher := oracle.New(ch.Oracle, sink, log, symbolFeeds)

	e := &Engine{
		cfg:       cfg,
		log:       log.With("component", "engine"),
		index:     ix,
		store:     st,
		watcher:   watcher,
		evaluator: ev,
		sched:     sched,
		pusher:    pusher,
	}

	handler := func(messageType int, data []byte) {
		if messageType != websocket.TextMessage {
			return
		}
		var tick priceTick
		if err := json.Unmarshal(data, &tick); err != nil {
			e.log.Warn("price client: malformed tick", "error", err)
			return
		}
		raw := types.OrgPrice{Symbol: tick.Symbol, Price: tick.Price, UpdateTime: tick.UpdateTime}
		watcher.Submit(types.Message{
			State:  types.State{Tag: types.StatePrice, Price: &raw},
			Status: types.StatusNormal,
		})
		pusher.OnTick(raw)
	}
	e.price = priceclient.New(cfg.Price.WSURL, subscribePayload(cfg), handler, log)

	return e, nil
}

func subscribePayload(cfg config.Config) []byte {
	symbols := make([]string, 0, len(cfg.Price.PythSymbol))
	for _, s := range cfg.Price.PythSymbol {
		symbols = append(symbols, s.Symbol)
	}
	data, _ := json.Marshal(map[string]any{"op": "subscribe", "symbols": symbols})
	return data
}

// Hydrate loads every active Market, Account, and Position record from
// the store into the in-memory Index before Start begins accepting live
// traffic. The chain-event subscriber that would otherwise replay these
// is external to this module (spec.md §1), so a store-only scan is the
// engine's own startup source of truth.
func (e *Engine) Hydrate() error {
	if err := e.store.ScanPrefix(store.PrefixActive, types.StateMarket, func(ent store.RawEntry) error {
		var m types.Market
		if err := ent.Unmarshal(&m); err != nil {
			e.log.Error("hydrate: skip malformed market", "key", string(ent.Key), "error", err)
			return nil
		}
		e.index.UpsertMarket(m)
		return nil
	}); err != nil {
		return err
	}

	if err := e.store.ScanPrefix(store.PrefixActive, types.StateAccount, func(ent store.RawEntry) error {
		var a types.Account
		if err := ent.Unmarshal(&a); err != nil {
			e.log.Error("hydrate: skip malformed account", "key", string(ent.Key), "error", err)
			return nil
		}
		e.index.UpsertAccount(a)
		return nil
	}); err != nil {
		return err
	}

	if err := e.store.ScanPrefix(store.PrefixActive, types.StatePosition, func(ent store.RawEntry) error {
		var p types.Position
		if err := ent.Unmarshal(&p); err != nil {
			e.log.Error("hydrate: skip malformed position", "key", string(ent.Key), "error", err)
			return nil
		}
		e.index.UpsertPosition(p)
		return nil
	}); err != nil {
		return err
	}

	e.log.Info("hydrate complete", "markets", len(e.index.AllMarketIDs()), "accounts", len(e.index.AllAccountIDs()))
	return nil
}

// Start launches the four independent background stages: the upstream
// price client, the liquidation scheduler, the oracle pusher, and the
// ingest watcher. Each runs until its own context is cancelled by Stop.
func (e *Engine) Start() {
	var ctx context.Context

	ctx, e.cancelPrice = context.WithCancel(context.Background())
	e.priceDone = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.priceDone)
		if err := e.price.Run(ctx); err != nil && ctx.Err() == nil {
			e.log.Error("price client stopped", "error", err)
		}
	}()

	ctx, e.cancelSched = context.WithCancel(context.Background())
	e.schedDone = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.schedDone)
		e.sched.Run(ctx)
	}()

	ctx, e.cancelOracle = context.WithCancel(context.Background())
	e.oracleDone = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.oracleDone)
		e.pusher.Run(ctx, e.cfg.OraclePushInterval())
	}()

	ctx, e.cancelIngest = context.WithCancel(context.Background())
	e.ingestDone = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.ingestDone)
		e.watcher.Run(ctx)
	}()

	e.log.Info("engine started")
}

const stopStageTimeout = 2 * time.Second

// stopStage cancels a stage and waits up to stopStageTimeout for it to
// report done, logging rather than blocking forever if it doesn't.
func (e *Engine) stopStage(name string, cancel context.CancelFunc, done <-chan struct{}) {
	cancel()
	select {
	case <-done:
	case <-time.After(stopStageTimeout):
		e.log.Warn("stage did not stop within timeout", "stage", name, "timeout", stopStageTimeout)
	}
}

// Stop shuts the engine down in the order spec.md §5 describes: the
// price client first (stop ingesting new ticks), then the scheduler (stop
// submitting new force-closes), then the oracle pusher, then the ingest
// watcher last so any in-flight writes from the earlier stages still
// land. It then waits for every goroutine and closes the store.
func (e *Engine) Stop() {
	e.log.Info("shutting down")

	e.stopStage("priceclient", e.cancelPrice, e.priceDone)
	e.stopStage("scheduler", e.cancelSched, e.schedDone)
	e.stopStage("oracle", e.cancelOracle, e.oracleDone)
	e.stopStage("ingest", e.cancelIngest, e.ingestDone)

	e.wg.Wait()

	if err := e.store.Close(); err != nil {
		e.log.Error("close store", "error", err)
	}
	e.log.Info("shutdown complete")
}
