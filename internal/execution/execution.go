// Package execution implements the entry and exit protocols (spec.md
// §4.C11): FOK-first order placement with a GTC fallback on entry, banded
// slippage with a forced retry on exit, and hedge leg unwind/placement.
// Grounded on execution_service.go's placeMakerOrderWithFlashRetry (post a
// resting order, on rejection flash-retry at market) and its
// watchOrderForFill "stealth walk" timeout ladder, re-aimed at FOK/GTC
// prediction-market orders instead of futures maker/taker orders.
package execution

import (
	"context"
	"fmt"

	"predatorbook/internal/clobtypes"
	"predatorbook/internal/decision"
	"predatorbook/internal/evtracker"
	"predatorbook/internal/hedgepolicy"
	"predatorbook/internal/logging"
	"predatorbook/internal/position"
	"predatorbook/internal/reason"
)

// OrderSide is BUY/SELL at the wire level, distinct from a position's
// LONG/SHORT/NONE directional Side.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType is FOK or GTC, per spec.md §6.
type OrderType string

const (
	FOK OrderType = "FOK"
	GTC OrderType = "GTC"
)

// SignedOrder is an opaque, already-signed order payload; ClobClient
// implementations construct and interpret it, execution never does.
type SignedOrder struct {
	Raw any
}

// OrderResult is postOrder's result, per spec.md §6.
type OrderResult struct {
	Success      bool
	Status       string
	TakingAmount float64
	MakingAmount float64
	ErrorMsg     string
	OrderID      string
}

// Filled reports whether status or amounts indicate a confirmed fill,
// never a phantom fill from absence of both signals.
func (r OrderResult) Filled() bool {
	if r.Status == "MATCHED" || r.Status == "FILLED" {
		return true
	}
	return r.TakingAmount > 0 || r.MakingAmount > 0
}

// ClobClient is the external order-placement capability execution consumes.
type ClobClient interface {
	GetOrderBook(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error)
	CreateMarketOrder(ctx context.Context, side OrderSide, tokenID string, amountShares, priceCents float64) (SignedOrder, error)
	CreateOrder(ctx context.Context, side OrderSide, tokenID string, sizeShares, priceCents float64) (SignedOrder, error)
	PostOrder(ctx context.Context, order SignedOrder, orderType OrderType) (OrderResult, error)
}

// NetworkHealth is the LatencyMonitor's health snapshot.
type NetworkHealth struct {
	Status                  string // healthy, degraded, critical
	RPCLatencyMs            int64
	APILatencyMs            int64
	RecommendedSlippagePct  float64
	Warnings                []string
}

// LatencyMonitor is the external network-health capability.
type LatencyMonitor interface {
	GetNetworkHealth() NetworkHealth
	IsTradingSafe() (bool, string)
}

// MarketMetadata resolves the market facts execution needs beyond the book
// itself: a token's sibling outcome, needed to hedge a freshly opened
// position (spec.md §6, §4.C11 step 4). Grounded on Polymarket's Gamma
// market-metadata API, a separate REST service from the CLOB trading API.
type MarketMetadata interface {
	OppositeTokenID(ctx context.Context, tokenID string) (string, error)
}

// Config holds execution-level tunables.
type Config struct {
	CooldownSecondsPerToken float64
	BaseSlippagePct         float64 // used when latency monitor unavailable
}

func DefaultConfig() Config {
	return Config{
		CooldownSecondsPerToken: 20,
		BaseSlippagePct:         0.02,
	}
}

// EntryResult is the entry protocol's outcome.
type EntryResult struct {
	Success    bool
	Pending    bool // true for a GTC fallback accepted but not locally registered
	Position   *position.ManagedPosition
	Reason     reason.Reason
	ErrorMsg   string
}

// Engine wires the decision, position, EV, hedge, and cooldown subsystems
// to ClobClient/LatencyMonitor.
type Engine struct {
	cfg      Config
	clob     ClobClient
	latency  LatencyMonitor
	market   MarketMetadata
	decision *decision.Engine
	pos      *position.Manager
	ev       *evtracker.Tracker
	hedge    *hedgepolicy.Policy
	log      *logging.Logger
}

// New creates an execution engine. market may be nil, in which case a
// filled entry is registered without an opposite token and can never be
// hedged.
func New(cfg Config, clob ClobClient, latency LatencyMonitor, market MarketMetadata, dec *decision.Engine, pos *position.Manager, ev *evtracker.Tracker, hedge *hedgepolicy.Policy, log *logging.Logger) *Engine {
	return &Engine{cfg: cfg, clob: clob, latency: latency, market: market, decision: dec, pos: pos, ev: ev, hedge: hedge, log: log}
}

// dynamicSlippagePct widens the base slippage when the latency monitor
// reports a degraded/critical network.
func (e *Engine) dynamicSlippagePct() float64 {
	if e.latency == nil {
		return e.cfg.BaseSlippagePct
	}
	h := e.latency.GetNetworkHealth()
	if h.RecommendedSlippagePct > 0 {
		return h.RecommendedSlippagePct
	}
	return e.cfg.BaseSlippagePct
}

// ProcessEntry implements spec.md §4.C11's entry protocol.
func (e *Engine) ProcessEntry(ctx context.Context, tokenID string, entry decision.EntryResult) EntryResult {
	if !entry.Allowed {
		return EntryResult{Success: false, Reason: reason.NoLiquidity, ErrorMsg: entry.Reason}
	}

	if e.latency != nil {
		if safe, why := e.latency.IsTradingSafe(); !safe {
			return EntryResult{Success: false, Reason: reason.NetworkUnsafe, ErrorMsg: "NETWORK_UNSAFE: " + why}
		}
	}

	slippage := e.dynamicSlippagePct()
	fokPriceCents := entry.PriceCents * (1 + slippage) // widen ask upward for a BUY
	fokPrice := fokPriceCents / 100
	shares := entry.SizeUsd / fokPrice

	order, err := e.clob.CreateMarketOrder(ctx, Buy, tokenID, shares, fokPrice)
	if err != nil {
		return EntryResult{Success: false, Reason: reason.OrderRejected, ErrorMsg: err.Error()}
	}
	res, err := e.clob.PostOrder(ctx, order, FOK)
	if err == nil && res.Filled() {
		pos := e.pos.OpenPosition(tokenID, entry.PriceCents, entry.SizeUsd)
		if e.market != nil {
			if opp, err := e.market.OppositeTokenID(ctx, tokenID); err == nil && opp != "" {
				e.pos.SetOppositeToken(pos.ID, opp)
			} else if e.log != nil {
				e.log.Warn("opposite token unresolved, position cannot be hedged", map[string]any{"token_id": tokenID})
			}
		}
		return EntryResult{Success: true, Position: pos}
	}

	// FOK miss -> GTC fallback at a tighter band.
	gtcPriceCents := entry.PriceCents * (1 + slippage*0.5)
	gtcPrice := gtcPriceCents / 100
	gtcShares := entry.SizeUsd / gtcPrice
	gtcOrder, err := e.clob.CreateOrder(ctx, Buy, tokenID, gtcShares, gtcPrice)
	if err != nil {
		return EntryResult{Success: false, Reason: reason.OrderRejected, ErrorMsg: err.Error()}
	}
	gtcRes, err := e.clob.PostOrder(ctx, gtcOrder, GTC)
	if err == nil && gtcRes.Success {
		return EntryResult{Success: true, Pending: true}
	}

	return EntryResult{Success: false, Reason: reason.OrderRejected, ErrorMsg: "ORDER_REJECTED"}
}

// slippageBandForReason returns the exit slippage band of spec.md §4.C11.
func slippageBandForReason(r string) float64 {
	switch r {
	case "TAKE_PROFIT":
		return 0.04
	case "HARD_EXIT", "STOP_LOSS":
		return 0.15
	default:
		return 0.08
	}
}

// ExitResult is the exit protocol's outcome for one position.
type ExitResult struct {
	Success        bool
	ExitPriceCents float64
	Reason         reason.Reason
	ErrorMsg       string
	HedgeUnwound   int
	HedgeFailed    int
}

// ProcessExit implements spec.md §4.C11's exit protocol for one position.
func (e *Engine) ProcessExit(ctx context.Context, pos *position.ManagedPosition, exitReason string, bestBidCents float64) ExitResult {
	slippage := slippageBandForReason(exitReason)
	priceCents := bestBidCents * (1 - slippage)
	price := priceCents / 100
	shares := pos.EntrySizeUsd / (pos.EntryPriceCents / 100)

	order, err := e.clob.CreateMarketOrder(ctx, Sell, pos.TokenID, shares, price)
	if err != nil {
		return ExitResult{Success: false, Reason: reason.OrderRejected, ErrorMsg: err.Error()}
	}
	res, err := e.clob.PostOrder(ctx, order, FOK)
	filled := err == nil && res.Filled()

	urgent := exitReason == "HARD_EXIT" || exitReason == "STOP_LOSS"
	if !filled && urgent {
		forcedPriceCents := bestBidCents * (1 - 0.25)
		forcedPrice := forcedPriceCents / 100
		forcedOrder, ferr := e.clob.CreateMarketOrder(ctx, Sell, pos.TokenID, shares, forcedPrice)
		if ferr == nil {
			forcedRes, perr := e.clob.PostOrder(ctx, forcedOrder, FOK)
			if perr == nil && forcedRes.Filled() {
				filled = true
				priceCents = forcedPriceCents
			}
		}
	}

	if !filled {
		return ExitResult{Success: false, Reason: reason.FOKNotFilled, ErrorMsg: "FOK_NOT_FILLED"}
	}

	unwound, failed := e.unwindHedges(ctx, pos)

	if err := e.pos.BeginExit(pos.ID, exitReason); err == nil {
		_ = e.pos.ClosePosition(pos.ID, priceCents, exitReason)
	}
	if e.ev != nil {
		e.ev.RecordTrade(evtracker.TradeResult{PnLCents: int(priceCents - pos.EntryPriceCents)})
	}

	return ExitResult{Success: true, ExitPriceCents: priceCents, HedgeUnwound: unwound, HedgeFailed: failed}
}

// unwindHedges unwinds every hedge leg on a successfully exited position.
// Failed legs are counted but don't block the primary exit's success.
func (e *Engine) unwindHedges(ctx context.Context, pos *position.ManagedPosition) (unwound, failed int) {
	for _, leg := range pos.HedgeLegs {
		book, err := e.clob.GetOrderBook(ctx, leg.TokenID)
		if err != nil || len(book.Bids) == 0 {
			failed++
			continue
		}
		bid := book.Bids[0]
		price := bid.Price.InexactFloat64()
		shares := leg.SizeUsd / (leg.PriceCents / 100)

		order, err := e.clob.CreateMarketOrder(ctx, Sell, leg.TokenID, shares, price)
		if err != nil {
			failed++
			continue
		}
		res, err := e.clob.PostOrder(ctx, order, FOK)
		if err != nil || !res.Filled() {
			failed++
			continue
		}
		unwound++
	}
	return unwound, failed
}

// hedgeFetcher is a best-effort proactive sibling orderbook supplied by the
// control loop (spec.md: "prefer a proactively-fetched sibling orderbook
// when fresh and has >= $5 ask depth; else fetch fresh").
type hedgeFetcher interface {
	ProactiveSiblingBook(tokenID string) (clobtypes.OrderBookSnapshot, bool)
}

// PlaceHedge implements spec.md §4.C11's hedge placement protocol.
func (e *Engine) PlaceHedge(ctx context.Context, pos *position.ManagedPosition, ratio float64, proactive hedgeFetcher) error {
	if pos.OppositeTokenID == "" {
		return fmt.Errorf("%s", reason.NoOppositeToken)
	}

	var book clobtypes.OrderBookSnapshot
	haveFresh := false
	if proactive != nil {
		if b, ok := proactive.ProactiveSiblingBook(pos.OppositeTokenID); ok {
			askDepth := 0.0
			if len(b.Asks) > 0 {
				askDepth = b.Asks[0].Size.InexactFloat64() * b.Asks[0].Price.InexactFloat64()
			}
			if askDepth >= 5 {
				book = b
				haveFresh = true
			}
		}
	}
	if !haveFresh {
		b, err := e.clob.GetOrderBook(ctx, pos.OppositeTokenID)
		if err != nil {
			return fmt.Errorf("fetch sibling book: %w", err)
		}
		book = b
	}
	if len(book.Asks) == 0 {
		return fmt.Errorf("%s", reason.NoLiquidity)
	}

	ask := book.Asks[0]
	mid := ask.Price.InexactFloat64()
	sizeUsd := pos.EntrySizeUsd * ratio
	shares := sizeUsd / mid

	if mid <= 0.001 || shares < 0.0001 {
		if mid <= 0.001 {
			return fmt.Errorf("%s", reason.PriceTooLow)
		}
		return fmt.Errorf("%s", reason.SizeTooSmall)
	}

	order, err := e.clob.CreateMarketOrder(ctx, Buy, pos.OppositeTokenID, shares, mid)
	if err != nil {
		return err
	}
	res, err := e.clob.PostOrder(ctx, order, FOK)
	if err != nil || !res.Filled() {
		return fmt.Errorf("%s", reason.FOKNotFilled)
	}

	return e.pos.RecordHedge(pos.ID, position.HedgeLeg{
		TokenID:    pos.OppositeTokenID,
		PriceCents: mid * 100,
		SizeUsd:    sizeUsd,
		Ratio:      ratio,
	})
}
