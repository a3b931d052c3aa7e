// Package scheduler implements the liquidation scheduler: a single
// account producer feeding a fixed pool of position workers, racing four
// sources (shutdown, funding-fee cron, opening-price cron, sweep loop) so
// the engine continuously evaluates every account without starvation
// (spec.md §4.4).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"scale-bot/internal/cascade"
	"scale-bot/internal/chain"
	"scale-bot/internal/index"
	"scale-bot/pkg/types"
)

// Config tunes worker count and the three cadences the producer drives.
type Config struct {
	// Workers is the number of position workers (N ≥ 2, default 2).
	Workers int
	// SweepInterval is T_sweep (default 10s).
	SweepInterval time.Duration
	// FundingTickInterval is T_ff.
	FundingTickInterval time.Duration
	// OpeningPriceInterval is T_op.
	OpeningPriceInterval time.Duration
}

// OpeningPriceSource supplies a market's daily 00:00 UTC opening price.
// The spec defers its actual sourcing to an external system (spec.md §9);
// a nil source makes the opening-price tick a no-op.
type OpeningPriceSource interface {
	OpeningPrice(ctx context.Context, marketID types.Address) (uint64, bool)
}

// Scheduler runs the producer/worker pool against a shared Index.
type Scheduler struct {
	index    *index.Index
	cascade  *cascade.Evaluator
	closer   chain.Positions
	funding  chain.FundingSettler
	opening  OpeningPriceSource
	log      *slog.Logger
	cfg      Config

	pnlQueue     chan types.Address
	fundingQueue chan types.Address

	sweepIndex uint64
}

// New constructs a Scheduler. workers below 2 is clamped to 2, matching
// the config default in spec.md §6. opening may be nil.
func New(ix *index.Index, ev *cascade.Evaluator, closer chain.Positions, funding chain.FundingSettler, opening OpeningPriceSource, log *slog.Logger, cfg Config) *Scheduler {
	if cfg.Workers < 2 {
		cfg.Workers = 2
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	return &Scheduler{
		index:        ix,
		cascade:      ev,
		closer:       closer,
		funding:      funding,
		opening:      opening,
		log:          log.With("component", "scheduler"),
		cfg:          cfg,
		pnlQueue:     make(chan types.Address, cfg.Workers),
		fundingQueue: make(chan types.Address, cfg.Workers),
	}
}

// Run starts the producer and the fixed-size worker pool. It blocks until
// ctx is cancelled, by which point the producer has stopped and every
// worker has finished draining the item it was mid-compute on (spec.md
// §5, §8 scenario 6).
func (s *Scheduler) Run(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		p.Go(func() { s.workerLoop(ctx) })
	}

	s.producerLoop(ctx)

	p.Wait()
}

// producerLoop races shutdown, the two cron tickers, and the sweep timer.
// Shutdown is checked first on every iteration so it never starves behind
// a burst of ready ticks; the underlying select among the remaining three
// sources relies on Go's pseudo-random case selection for fairness.
func (s *Scheduler) producerLoop(ctx context.Context) {
	fundingTicker := time.NewTicker(s.cfg.FundingTickInterval)
	defer fundingTicker.Stop()
	openingTicker := time.NewTicker(s.cfg.OpeningPriceInterval)
	defer openingTicker.Stop()
	sweepTimer := time.NewTimer(s.cfg.SweepInterval)
	defer sweepTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-fundingTicker.C:
			s.enqueueAll(ctx, s.fundingQueue)
		case <-openingTicker.C:
			s.tickOpeningPrice(ctx)
		case <-sweepTimer.C:
			s.sweep(ctx)
			sweepTimer.Reset(s.cfg.SweepInterval)
		}
	}
}

// sweep enumerates every account and enqueues it on the PnL queue,
// logging the sweep index and elapsed time once complete.
func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	s.sweepIndex++
	idx := s.sweepIndex

	accounts := s.index.AllAccountIDs()
	s.enqueueAllAddrs(ctx, s.pnlQueue, accounts)

	s.log.Info("sweep complete", "sweep_index", idx, "elapsed", time.Since(start), "accounts", len(accounts))
}

// enqueueAll enqueues every known account address on q. Skipped (dropped)
// ticks never reach here: the caller only invokes this from a ticker fire,
// so a tick that arrives while the producer is busy elsewhere is simply
// not read from the ticker channel and is dropped by time.Ticker itself
// (latest-wins, per spec.md §4.4's cadence invariant).
func (s *Scheduler) enqueueAll(ctx context.Context, q chan types.Address) {
	s.enqueueAllAddrs(ctx, q, s.index.AllAccountIDs())
}

func (s *Scheduler) enqueueAllAddrs(ctx context.Context, q chan types.Address, addrs []types.Address) {
	for _, a := range addrs {
		select {
		case <-ctx.Done():
			return
		case q <- a:
		}
	}
}

// tickOpeningPrice recomputes each market's opening_price via the
// external source. A nil source (no source configured) makes this a
// no-op, matching spec.md §9's treatment of the daily 00:00 UTC price as
// an external input.
func (s *Scheduler) tickOpeningPrice(ctx context.Context) {
	if s.opening == nil {
		return
	}
	for _, marketID := range s.index.AllMarketIDs() {
		price, ok := s.opening.OpeningPrice(ctx, marketID)
		if !ok {
			continue
		}
		m, ok := s.index.Market(marketID)
		if !ok {
			continue
		}
		m.OpeningPrice = price
		s.index.UpsertMarket(m)
	}
}

// workerLoop races the PnL queue and the funding queue, popping one
// account address at a time until ctx is cancelled.
func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case accountID := <-s.pnlQueue:
			s.computePosition(ctx, accountID)
		case accountID := <-s.fundingQueue:
			s.handleFundFee(ctx, accountID)
		}
	}
}

// computePosition runs the cascade for one account and submits each
// selected force-close to the chain client, in the order the cascade
// chose.
func (s *Scheduler) computePosition(ctx context.Context, accountID types.Address) {
	closes := s.cascade.Evaluate(accountID)
	for _, c := range closes {
		if _, err := s.closer.ClosePosition(ctx, c.PositionID, true); err != nil {
			s.log.Error("close_position failed", "account", accountID, "position", c.PositionID, "reason", c.Reason, "error", err)
		}
	}
}

// handleFundFee drives one account's periodic funding-fee settlement.
// The accrual math itself is deferred to the chain client (spec.md §9); a
// nil FundingSettler makes this a no-op.
func (s *Scheduler) handleFundFee(ctx context.Context, accountID types.Address) {
	if s.funding == nil {
		return
	}
	if err := s.funding.SettleFunding(ctx, accountID); err != nil {
		s.log.Error("funding settlement failed", "account", accountID, "error", err)
	}
}
