package controlloop

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predatorbook/internal/adaptivev"
	"predatorbook/internal/bias"
	"predatorbook/internal/bookresolver"
	"predatorbook/internal/clobtypes"
	"predatorbook/internal/cooldown"
	"predatorbook/internal/decision"
	"predatorbook/internal/evtracker"
	"predatorbook/internal/execution"
	"predatorbook/internal/position"
	"predatorbook/internal/reason"
	"predatorbook/internal/reserve"
	"predatorbook/internal/riskguard"
)

// fakeFetcher serves a canned book per token id, standing in for both
// bookresolver.Fetcher and WSCacheFetcher the way bookresolver_test.go's
// fakeFetcher does.
type fakeFetcher struct {
	books map[string]clobtypes.OrderBookSnapshot
}

func (f *fakeFetcher) Fetch(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	return f.books[tokenID], nil
}

func (f *fakeFetcher) IsFreshAndNonEmpty(tokenID string) bool { return false }

func level(priceCents int) clobtypes.NormalizedLevel {
	return clobtypes.NormalizedLevel{
		Price: decimal.NewFromInt(int64(priceCents)).Div(decimal.NewFromInt(100)),
		Size:  decimal.NewFromInt(500),
	}
}

func healthyBook(askCents, bidCents int) clobtypes.OrderBookSnapshot {
	return clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(bidCents)},
		Asks:     []clobtypes.NormalizedLevel{level(askCents)},
	}
}

// fakeClob is execution.ClobClient, filling every order it receives.
type fakeClob struct {
	orders int
}

func (f *fakeClob) GetOrderBook(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	return healthyBook(52, 48), nil
}

func (f *fakeClob) CreateMarketOrder(ctx context.Context, side execution.OrderSide, tokenID string, amountShares, priceCents float64) (execution.SignedOrder, error) {
	return execution.SignedOrder{}, nil
}

func (f *fakeClob) CreateOrder(ctx context.Context, side execution.OrderSide, tokenID string, sizeShares, priceCents float64) (execution.SignedOrder, error) {
	return execution.SignedOrder{}, nil
}

func (f *fakeClob) PostOrder(ctx context.Context, order execution.SignedOrder, orderType execution.OrderType) (execution.OrderResult, error) {
	f.orders++
	return execution.OrderResult{Success: true, Status: "FILLED"}, nil
}

// fakeWallet implements WalletBalance with a fixed, sufficient balance.
type fakeWallet struct{ usd float64 }

func (w *fakeWallet) BalanceUsd(ctx context.Context) (float64, error) { return w.usd, nil }

// fakeScan implements ScanSource from a fixed token list.
type fakeScan struct{ tokens []string }

func (s *fakeScan) CandidateTokens(ctx context.Context) []string { return s.tokens }

// fakeExternal implements ExternalPositionSource, reporting a canned holding.
type fakeExternal struct {
	holdings []ExternalHolding
	calls    int
}

func (f *fakeExternal) DiscoverUntracked(ctx context.Context, candidateTokenIDs []string) ([]ExternalHolding, error) {
	f.calls++
	return f.holdings, nil
}

// fakeRedeemer implements Redeemer, counting invocations.
type fakeRedeemer struct {
	redeemCalls int
	topUpCalls  int
}

func (r *fakeRedeemer) RedeemResolved(ctx context.Context) (int, error) {
	r.redeemCalls++
	return 0, nil
}

func (r *fakeRedeemer) TopUpPOL(ctx context.Context) error {
	r.topUpCalls++
	return nil
}

// newTestEngine builds a fully-wired Engine on fakes, permissive enough
// (zero depth gate) that a healthy book reaches an actual fill.
func newTestEngine(t *testing.T, fetcher *fakeFetcher, clob *fakeClob, scan ScanSource, wallet WalletBalance, externalPos ExternalPositionSource, redeem Redeemer) (*Engine, *position.Manager, *cooldown.Manager, *bias.Accumulator) {
	t.Helper()

	resolver := bookresolver.New(nil, fetcher, nil)

	decisionCfg := decision.DefaultConfig()
	decisionCfg.MinDepthUsdAtExit = 0 // fakes report no depth figures
	decisionEngine := decision.New(decisionCfg)

	posManager := position.New(position.DefaultConfig())
	evTracker := evtracker.New(evtracker.DefaultConfig())

	execEngine := execution.New(execution.DefaultConfig(), clob, nil, nil, decisionEngine, posManager, evTracker, nil, nil)

	biasAcc := bias.New(bias.DefaultConfig())
	cooldownMgr := cooldown.New()

	e := New(Deps{
		Resolver:          resolver,
		Decision:          decisionEngine,
		Positions:         posManager,
		Execution:         execEngine,
		Bias:              biasAcc,
		Cooldowns:         cooldownMgr,
		EV:                evTracker,
		Adaptive:          adaptivev.New(adaptivev.DefaultConfig()),
		Reserve:           reserve.New(reserve.DefaultConfig()),
		Risk:              riskguard.New(riskguard.DefaultConfig()),
		Wallet:            wallet,
		Scan:              scan,
		ExternalPositions: externalPos,
		Redeem:            redeem,
	})
	return e, posManager, cooldownMgr, biasAcc
}

func TestScanForEntriesFallsBackToScannerWithoutBias(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{
		"tok1": healthyBook(52, 48),
	}}
	clob := &fakeClob{}
	wallet := &fakeWallet{usd: 1000}
	scan := &fakeScan{tokens: []string{"tok1"}}

	e, posManager, _, _ := newTestEngine(t, fetcher, clob, scan, wallet, nil, nil)

	require.NoError(t, e.scanForEntries(context.Background()))
	assert.Equal(t, 1, posManager.CountForToken("tok1"))
	assert.Equal(t, 1, clob.orders)
}

func TestScanForEntriesPrefersBiasOverScanner(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{
		"biased": healthyBook(52, 48),
	}}
	clob := &fakeClob{}
	wallet := &fakeWallet{usd: 1000}
	scan := &fakeScan{tokens: []string{"unbiased"}}

	e, posManager, _, biasAcc := newTestEngine(t, fetcher, clob, scan, wallet, nil, nil)

	now := time.Now()
	biasAcc.Ingest(bias.LeaderboardTrade{Wallet: "w1", TokenID: "biased", Side: clobtypes.LONG, SizeUsd: 5000, PriceCents: 50, Timestamp: now})
	biasAcc.Ingest(bias.LeaderboardTrade{Wallet: "w2", TokenID: "biased", Side: clobtypes.LONG, SizeUsd: 5000, PriceCents: 50, Timestamp: now.Add(time.Millisecond)})

	require.NoError(t, e.scanForEntries(context.Background()))
	assert.Equal(t, 1, posManager.CountForToken("biased"))
	assert.Equal(t, 0, posManager.CountForToken("unbiased"))
}

func TestEvaluateOneCandidateRoutesBookFailureThroughCooldown(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{
		"badbook": {ParsedOk: false},
	}}
	clob := &fakeClob{}
	wallet := &fakeWallet{usd: 1000}

	e, _, cooldownMgr, _ := newTestEngine(t, fetcher, clob, nil, wallet, nil, nil)

	assert.False(t, cooldownMgr.IsOnCooldown("badbook"))
	e.evaluateOneCandidate(context.Background(), entryCandidate{tokenID: "badbook", side: clobtypes.LONG})
	assert.True(t, cooldownMgr.IsOnCooldown("badbook"))
	assert.Equal(t, 0, clob.orders)
}

func TestReasonForHealthMapsEveryFailureHealth(t *testing.T) {
	cases := map[clobtypes.Health]reason.Reason{
		clobtypes.HealthEmptyBook:       reason.EmptyBook,
		clobtypes.HealthDustBook:        reason.DustBook,
		clobtypes.HealthWideSpread:      reason.WideSpread,
		clobtypes.HealthAskTooHigh:      reason.AskTooHigh,
		clobtypes.HealthParseError:      reason.ParseError,
		clobtypes.HealthBookFetchFailed: reason.BookFetchFailed,
		clobtypes.HealthNoData:          reason.NoOrderbook,
		clobtypes.HealthOK:              reason.None,
	}
	for health, want := range cases {
		assert.Equal(t, want, reasonForHealth(health), "health %s", health)
	}
}

func TestHousekeepingSyncsExternalPositionsEveryNCycles(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{}}
	clob := &fakeClob{}
	scan := &fakeScan{tokens: []string{"onchain-tok"}}
	external := &fakeExternal{holdings: []ExternalHolding{
		{TokenID: "onchain-tok", OutcomeLabel: "onchain_sync", AvgPriceCents: 55, SizeUsd: 40},
	}}

	e, posManager, _, _ := newTestEngine(t, fetcher, clob, scan, nil, external, nil)

	for i := 0; i < positionSyncEveryNCycles-1; i++ {
		e.housekeeping(context.Background())
	}
	assert.Equal(t, 0, external.calls)
	assert.Equal(t, 0, posManager.CountForToken("onchain-tok"))

	e.housekeeping(context.Background())
	assert.Equal(t, 1, external.calls)
	assert.Equal(t, 1, posManager.CountForToken("onchain-tok"))
}

func TestHousekeepingSkipsRediscoveringAlreadyTrackedPosition(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{}}
	clob := &fakeClob{}
	scan := &fakeScan{tokens: []string{"tracked-tok"}}
	external := &fakeExternal{holdings: []ExternalHolding{
		{TokenID: "tracked-tok", OutcomeLabel: "onchain_sync", AvgPriceCents: 55, SizeUsd: 40},
	}}

	e, posManager, _, _ := newTestEngine(t, fetcher, clob, scan, nil, external, nil)
	posManager.OpenPosition("tracked-tok", 50, 25)

	for i := 0; i < positionSyncEveryNCycles; i++ {
		e.housekeeping(context.Background())
	}
	assert.Equal(t, 1, posManager.CountForToken("tracked-tok"))
}

func TestRunCycleInvokesRedeemerOnlyAfterRedemptionInterval(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]clobtypes.OrderBookSnapshot{}}
	clob := &fakeClob{}
	redeem := &fakeRedeemer{}

	e, _, _, _ := newTestEngine(t, fetcher, clob, nil, nil, nil, redeem)

	require.NoError(t, e.runCycle(context.Background()))
	assert.Equal(t, 1, redeem.redeemCalls, "first cycle's zero-value lastRedemption is always due")

	require.NoError(t, e.runCycle(context.Background()))
	assert.Equal(t, 1, redeem.redeemCalls, "second cycle within the interval must not re-invoke")
}
