// Package controlloop composes every subsystem into the engine's per-cycle
// fan-out/join, grounded on predator_engine.go's main Run loop (a
// ticker-driven scan-all-symbols-then-evaluate-exits cycle), generalized
// from a fixed-interval single pass into an adaptive polling,
// liquidation-mode, and housekeeping schedule.
package controlloop

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"predatorbook/internal/adaptivev"
	"predatorbook/internal/advisory"
	"predatorbook/internal/bias"
	"predatorbook/internal/bookresolver"
	"predatorbook/internal/clobtypes"
	"predatorbook/internal/cooldown"
	"predatorbook/internal/decision"
	"predatorbook/internal/evtracker"
	"predatorbook/internal/execution"
	"predatorbook/internal/hedgepolicy"
	"predatorbook/internal/logging"
	"predatorbook/internal/notify"
	"predatorbook/internal/position"
	"predatorbook/internal/reason"
	"predatorbook/internal/reserve"
	"predatorbook/internal/riskguard"
	"predatorbook/internal/storage"
)

const (
	activePollInterval = 100 * time.Millisecond
	idlePollInterval    = 200 * time.Millisecond

	redemptionInterval     = 10 * time.Minute
	statusLogInterval      = 5 * time.Minute
	prunePositionsInterval = time.Hour
	maxClosedPositionAge   = 24 * time.Hour
	positionSyncEveryNCycles = 10

	maxSpreadCents = 6

	// maxBiasCandidatesPerCycle/maxScanCandidatesPerCycle implement the
	// two-tier entry-candidate cap: bias-eligible tokens are preferred,
	// falling back to the scanner's watchlist only when no bias exists.
	maxBiasCandidatesPerCycle = 3
	maxScanCandidatesPerCycle = 2
)

// WalletBalance supplies the balance figures the reserve/riskguard
// evaluations need each cycle.
type WalletBalance interface {
	BalanceUsd(ctx context.Context) (float64, error)
}

// Redeemer performs periodic CTF redemption and POL top-up; both are
// side effects outside the hot path, run on their own long-period tickers.
type Redeemer interface {
	RedeemResolved(ctx context.Context) (int, error)
	TopUpPOL(ctx context.Context) error
}

// ScanSource supplies tokenIDs to evaluate for a fresh entry each cycle,
// e.g. a leaderboard scanner or a watchlist.
type ScanSource interface {
	CandidateTokens(ctx context.Context) []string
}

// ExternalHolding is one on-chain-discovered position not yet tracked by
// the position manager, adopted on a periodic sync.
type ExternalHolding struct {
	TokenID       string
	OutcomeLabel  string
	AvgPriceCents float64
	SizeUsd       float64
}

// ExternalPositionSource discovers wallet holdings the position manager
// doesn't yet track, checked every positionSyncEveryNCycles cycles.
type ExternalPositionSource interface {
	DiscoverUntracked(ctx context.Context, candidateTokenIDs []string) ([]ExternalHolding, error)
}

// Engine owns every C-module instance and runs the per-cycle composition.
type Engine struct {
	log *logging.Logger

	resolver  *bookresolver.Resolver
	decision  *decision.Engine
	pos       *position.Manager
	exec      *execution.Engine
	biasAcc   *bias.Accumulator
	cooldowns *cooldown.Manager
	ev        *evtracker.Tracker
	adaptive  *adaptivev.Engine
	reserveM  *reserve.Manager
	risk      *riskguard.Guard
	hedge     *hedgepolicy.Policy
	advisor   *advisory.Advisor
	ledger    *storage.Ledger
	notifier  *notify.TelegramNotifier

	wallet      WalletBalance
	redeem      Redeemer
	scan        ScanSource
	externalPos ExternalPositionSource

	liquidationMode bool
	cycleCount      int

	lastRedemption time.Time
	lastStatusLog  time.Time
	lastPrune      time.Time

	subscribe   func(tokenID string)
	unsubscribe func(tokenID string)
}

// Deps bundles every collaborator the control loop needs, letting
// cmd/engine construct them independently and wire them in one call.
type Deps struct {
	Log        *logging.Logger
	Resolver   *bookresolver.Resolver
	Decision   *decision.Engine
	Positions  *position.Manager
	Execution  *execution.Engine
	Bias       *bias.Accumulator
	Cooldowns  *cooldown.Manager
	EV         *evtracker.Tracker
	Adaptive   *adaptivev.Engine
	Reserve    *reserve.Manager
	Risk       *riskguard.Guard
	Hedge      *hedgepolicy.Policy
	Advisor    *advisory.Advisor
	Ledger     *storage.Ledger
	Notifier   *notify.TelegramNotifier
	Wallet          WalletBalance
	Redeem          Redeemer
	Scan            ScanSource
	ExternalPositions ExternalPositionSource
	Subscribe       func(tokenID string)
	Unsubscribe     func(tokenID string)
}

// New builds a control-loop engine from Deps.
func New(d Deps) *Engine {
	return &Engine{
		log:         d.Log,
		resolver:    d.Resolver,
		decision:    d.Decision,
		pos:         d.Positions,
		exec:        d.Execution,
		biasAcc:     d.Bias,
		cooldowns:   d.Cooldowns,
		ev:          d.EV,
		adaptive:    d.Adaptive,
		reserveM:    d.Reserve,
		risk:        d.Risk,
		hedge:       d.Hedge,
		advisor:     d.Advisor,
		ledger:      d.Ledger,
		notifier:    d.Notifier,
		wallet:      d.Wallet,
		redeem:      d.Redeem,
		scan:        d.Scan,
		externalPos: d.ExternalPositions,
		subscribe:   d.Subscribe,
		unsubscribe: d.Unsubscribe,
	}
}

// Run drives the engine until ctx is canceled. Each iteration runs one
// cycle, then sleeps for the active/idle interval before the next.
func (e *Engine) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		if err := e.runCycle(ctx); err != nil && e.log != nil {
			e.log.Warn("control loop cycle error", map[string]any{"error": err.Error()})
		}

		interval := idlePollInterval
		if len(e.pos.OpenPositions()) > 0 {
			interval = activePollInterval
		}
		elapsed := time.Since(start)
		sleep := interval - elapsed
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// runCycle executes one full pass: manage open positions, evaluate new
// entries, and run the low-frequency housekeeping that is due.
func (e *Engine) runCycle(ctx context.Context) error {
	e.housekeeping(ctx)

	if e.liquidationMode {
		return e.runLiquidation(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.manageOpenPositions(gctx) })
	g.Go(func() error { return e.scanForEntries(gctx) })
	return g.Wait()
}

// manageOpenPositions re-prices every open position against a fresh book
// and drives exit/hedge decisions, fanning each position out concurrently.
func (e *Engine) manageOpenPositions(ctx context.Context) error {
	positions := e.pos.OpenPositions()
	if e.advisor != nil {
		e.advisor.Evaluate()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range positions {
		p := p
		g.Go(func() error {
			e.evaluateOnePosition(gctx, p)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) evaluateOnePosition(ctx context.Context, p *position.ManagedPosition) {
	result := e.resolver.ResolveHealthyBook(ctx, p.TokenID, "position_manage", maxSpreadCents)
	if !result.Success {
		return
	}

	bid, _ := result.Snapshot.BestBid()
	ask, _ := result.Snapshot.BestAsk()
	midCents := (float64(bid.PriceCents()) + float64(ask.PriceCents())) / 2

	e.hedge.Observe(p.TokenID, midCents)

	biases := e.biasAcc.GetActiveBiases()
	currentBias := clobtypes.NONE
	for _, b := range biases {
		if b.TokenID == p.TokenID {
			currentBias = b.Side
		}
	}

	view := decision.PositionView{
		Side:            clobtypes.LONG,
		EntryPriceCents: p.EntryPriceCents,
		EntryTime:       p.EntryTime,
	}
	evAllowed := e.ev.IsTradingAllowed() == evtracker.AllowedYes

	exit := e.decision.EvaluateExit(view, midCents, currentBias, evAllowed)
	if exit.ShouldExit {
		e.exec.ProcessExit(ctx, p, string(exit.Reason), bid.Price.InexactFloat64()*100)
		return
	}

	action, actionReason := e.pos.UpdatePrice(p.ID, midCents, 3600)
	switch action {
	case position.ActionExit:
		e.exec.ProcessExit(ctx, p, actionReason, bid.Price.InexactFloat64()*100)
	case position.ActionHedge:
		if e.risk.IsHedgeOnCooldown(p.ID) {
			return
		}
		ratio := e.decision.CalculateHedgeSize(p.EntrySizeUsd, p.TotalHedgeRatio, 1.0, 0.5)
		if ratio <= 0 {
			return
		}
		if err := e.exec.PlaceHedge(ctx, p, ratio, nil); err == nil {
			e.risk.MarkHedged(p.ID)
		} else {
			e.reserveM.RecordMissedHedge()
		}
	}
}

// entryCandidate is one token up for entry evaluation together with its
// effective bias side.
type entryCandidate struct {
	tokenID string
	side    clobtypes.Side
	count   int
}

// scanForEntries applies a two-tier candidate selection: up to
// maxBiasCandidatesPerCycle tokens carrying an active bias signal, each
// using that bias's own side; only when no bias exists at all does it fall
// back to up to maxScanCandidatesPerCycle tokens from the scanner's
// watchlist, defaulting those to LONG (a scanner-only entry has no
// directional signal beyond "this market exists").
func (e *Engine) scanForEntries(ctx context.Context) error {
	biases := e.biasAcc.GetActiveBiases()

	var candidates []entryCandidate
	if len(biases) > 0 {
		n := len(biases)
		if n > maxBiasCandidatesPerCycle {
			n = maxBiasCandidatesPerCycle
		}
		for _, b := range biases[:n] {
			candidates = append(candidates, entryCandidate{tokenID: b.TokenID, side: b.Side, count: b.Count})
		}
	} else if e.scan != nil {
		tokens := e.scan.CandidateTokens(ctx)
		n := len(tokens)
		if n > maxScanCandidatesPerCycle {
			n = maxScanCandidatesPerCycle
		}
		for _, tok := range tokens[:n] {
			candidates = append(candidates, entryCandidate{tokenID: tok, side: clobtypes.LONG})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			e.evaluateOneCandidate(gctx, c)
			return nil
		})
	}
	return g.Wait()
}

// reasonForHealth maps a failed book-health classification onto the
// reason taxonomy so a fetch failure routes through cooldown the same way
// an execution failure does.
func reasonForHealth(h clobtypes.Health) reason.Reason {
	switch h {
	case clobtypes.HealthEmptyBook:
		return reason.EmptyBook
	case clobtypes.HealthDustBook:
		return reason.DustBook
	case clobtypes.HealthWideSpread:
		return reason.WideSpread
	case clobtypes.HealthAskTooHigh:
		return reason.AskTooHigh
	case clobtypes.HealthParseError:
		return reason.ParseError
	case clobtypes.HealthBookFetchFailed:
		return reason.BookFetchFailed
	case clobtypes.HealthNoData:
		return reason.NoOrderbook
	default:
		return reason.None
	}
}

func (e *Engine) evaluateOneCandidate(ctx context.Context, c entryCandidate) {
	tokenID := c.tokenID
	if e.cooldowns.IsOnCooldown(tokenID) {
		return
	}
	if e.pos.CountForToken(tokenID) > 0 {
		return
	}
	if e.adaptive.IsPaused() {
		return
	}

	result := e.resolver.ResolveHealthyBook(ctx, tokenID, "entry_scan", maxSpreadCents)
	if !result.Success {
		if r := reasonForHealth(result.Health.Health); r != reason.None {
			e.cooldowns.RecordFailure(tokenID, r)
		}
		return
	}

	bid, _ := result.Snapshot.BestBid()
	ask, _ := result.Snapshot.BestAsk()
	midCents := (float64(bid.PriceCents()) + float64(ask.PriceCents())) / 2

	balanceUsd := 0.0
	if e.wallet != nil {
		if b, err := e.wallet.BalanceUsd(ctx); err == nil {
			balanceUsd = b
		}
	}
	effectiveBankroll := e.reserveM.GetEffectiveBankroll(balanceUsd)

	evDecision := e.adaptive.Evaluate()

	params := decision.EntryParams{
		Bias:                c.side,
		SpreadCents:         result.Health.SpreadCents,
		BidDepthUsd:         0,
		AskDepthUsd:         0,
		TradesLastX:         c.count,
		BookUpdatesLastX:    1,
		MidPriceCents:       midCents,
		ReferencePriceCents: midCents,
		BestAskCents:        float64(ask.PriceCents()),
		OpenPositionsTotal:  len(e.pos.OpenPositions()),
		TotalDeployedUsd:    0,
		EffectiveBankroll:   effectiveBankroll,
		EVAllowed:           evDecision.SizeFactor > 0,
	}

	entry := e.decision.EvaluateEntry(params)
	if !entry.Allowed {
		return
	}

	gate := e.risk.GateEntry(riskguard.PortfolioState{
		WalletBalanceUsd:  balanceUsd,
		EffectiveBankroll: effectiveBankroll,
	}, entry.SizeUsd)
	if !gate.Allowed {
		e.reserveM.RecordMissedEntry()
		return
	}
	entry.SizeUsd = gate.AdjustedSize

	out := e.exec.ProcessEntry(ctx, tokenID, entry)
	if !out.Success && out.Reason != reason.None {
		e.cooldowns.RecordFailure(tokenID, out.Reason)
		return
	}
	if out.Position != nil && e.subscribe != nil {
		e.subscribe(tokenID)
	}
}

// runLiquidation closes every open position at best bid, ignoring normal
// exit thresholds, for liquidation mode.
func (e *Engine) runLiquidation(ctx context.Context) error {
	for _, p := range e.pos.OpenPositions() {
		result := e.resolver.ResolveHealthyBook(ctx, p.TokenID, "liquidation", maxSpreadCents)
		if !result.Success {
			continue
		}
		bid, ok := result.Snapshot.BestBid()
		if !ok {
			continue
		}
		e.exec.ProcessExit(ctx, p, "LIQUIDATION", bid.Price.InexactFloat64()*100)
	}
	return nil
}

// SetLiquidationMode toggles the liquidation-only cycle behavior.
func (e *Engine) SetLiquidationMode(on bool) {
	e.liquidationMode = on
}

// housekeeping runs the low-frequency maintenance tasks due this cycle:
// cooldown cleanup every cycle, and the longer-period ones on their own
// tickers checked against wall-clock time.
func (e *Engine) housekeeping(ctx context.Context) {
	e.cooldowns.Cleanup()
	e.reserveM.Tick()

	e.cycleCount++
	if e.externalPos != nil && e.cycleCount%positionSyncEveryNCycles == 0 {
		e.syncExternalPositions(ctx)
	}

	now := time.Now()

	if now.Sub(e.lastRedemption) >= redemptionInterval {
		e.lastRedemption = now
		if e.redeem != nil {
			if n, err := e.redeem.RedeemResolved(ctx); err == nil && n > 0 && e.log != nil {
				e.log.Info("redeemed resolved positions", map[string]any{"count": n})
			}
			_ = e.redeem.TopUpPOL(ctx)
		}
	}

	if now.Sub(e.lastStatusLog) >= statusLogInterval {
		e.lastStatusLog = now
		e.logStatus()
	}

	if now.Sub(e.lastPrune) >= prunePositionsInterval {
		e.lastPrune = now
		e.pos.PruneClosedPositions(maxClosedPositionAge)
	}
}

// syncExternalPositions periodically adopts untracked on-chain holdings:
// every positionSyncEveryNCycles cycles, check
// the scanner's token universe for a wallet balance the position manager
// doesn't already track and register it.
func (e *Engine) syncExternalPositions(ctx context.Context) {
	var universe []string
	if e.scan != nil {
		universe = e.scan.CandidateTokens(ctx)
	}
	if len(universe) == 0 {
		return
	}

	holdings, err := e.externalPos.DiscoverUntracked(ctx, universe)
	if err != nil {
		if e.log != nil {
			e.log.Warn("external position sync failed", map[string]any{"error": err.Error()})
		}
		return
	}

	for _, h := range holdings {
		if e.pos.CountForToken(h.TokenID) > 0 {
			continue
		}
		e.pos.RegisterExternalPosition(h.TokenID, h.OutcomeLabel, h.AvgPriceCents, h.SizeUsd)
	}
}

func (e *Engine) logStatus() {
	if e.log == nil {
		return
	}
	metrics := e.ev.Metrics()
	e.log.Event("STATUS", map[string]any{
		"open_positions": len(e.pos.OpenPositions()),
		"ev_cents":       metrics.EVCents,
		"win_rate":       metrics.WinRate,
		"cooldown_hits":  e.cooldowns.CooldownHits,
	})
}

// Status implements diagnostics.StatusProvider.
func (e *Engine) Status() map[string]any {
	metrics := e.ev.Metrics()
	return map[string]any{
		"open_positions":   len(e.pos.OpenPositions()),
		"liquidation_mode": e.liquidationMode,
		"ev_metrics":       metrics,
		"cooldown_hits":    e.cooldowns.CooldownHits,
	}
}
