package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predatorbook/internal/clobtypes"
	"predatorbook/internal/decision"
	"predatorbook/internal/position"
)

type stubClob struct {
	marketOrders []string
	postResults  []OrderResult
	postCalls    int
	book         clobtypes.OrderBookSnapshot
}

func (s *stubClob) GetOrderBook(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	return s.book, nil
}

func (s *stubClob) CreateMarketOrder(ctx context.Context, side OrderSide, tokenID string, amountShares, priceCents float64) (SignedOrder, error) {
	s.marketOrders = append(s.marketOrders, string(side)+":"+tokenID)
	return SignedOrder{}, nil
}

func (s *stubClob) CreateOrder(ctx context.Context, side OrderSide, tokenID string, sizeShares, priceCents float64) (SignedOrder, error) {
	return SignedOrder{}, nil
}

func (s *stubClob) PostOrder(ctx context.Context, order SignedOrder, orderType OrderType) (OrderResult, error) {
	idx := s.postCalls
	s.postCalls++
	if idx < len(s.postResults) {
		return s.postResults[idx], nil
	}
	return OrderResult{Success: false}, nil
}

func mkLevel(priceCents int) clobtypes.NormalizedLevel {
	return clobtypes.NormalizedLevel{
		Price: decimal.NewFromInt(int64(priceCents)).Div(decimal.NewFromInt(100)),
		Size:  decimal.NewFromInt(100),
	}
}

func TestProcessEntryFOKFilled(t *testing.T) {
	clob := &stubClob{postResults: []OrderResult{{Success: true, Status: "FILLED"}}}
	pos := position.New(position.DefaultConfig())
	e := New(DefaultConfig(), clob, nil, nil, decision.New(decision.DefaultConfig()), pos, nil, nil, nil)

	entry := decision.EntryResult{Allowed: true, Side: clobtypes.LONG, PriceCents: 52, SizeUsd: 25}
	res := e.ProcessEntry(context.Background(), "tok1", entry)
	assert.True(t, res.Success)
	assert.False(t, res.Pending)
	require.NotNil(t, res.Position)
	assert.Equal(t, 1, clob.postCalls)
}

func TestProcessEntryFOKMissGTCFallback(t *testing.T) {
	clob := &stubClob{postResults: []OrderResult{
		{Success: false},
		{Success: true},
	}}
	pos := position.New(position.DefaultConfig())
	e := New(DefaultConfig(), clob, nil, nil, decision.New(decision.DefaultConfig()), pos, nil, nil, nil)

	entry := decision.EntryResult{Allowed: true, Side: clobtypes.LONG, PriceCents: 52, SizeUsd: 25}
	res := e.ProcessEntry(context.Background(), "tok1", entry)
	assert.True(t, res.Success)
	assert.True(t, res.Pending)
	assert.Nil(t, res.Position)
	assert.Equal(t, 2, clob.postCalls)
}

type stubMarket struct {
	opposite map[string]string
}

func (s *stubMarket) OppositeTokenID(ctx context.Context, tokenID string) (string, error) {
	return s.opposite[tokenID], nil
}

func TestProcessEntrySetsOppositeTokenFromMarket(t *testing.T) {
	clob := &stubClob{postResults: []OrderResult{{Success: true, Status: "FILLED"}}}
	market := &stubMarket{opposite: map[string]string{"tok1": "sib1"}}
	pos := position.New(position.DefaultConfig())
	e := New(DefaultConfig(), clob, nil, market, decision.New(decision.DefaultConfig()), pos, nil, nil, nil)

	entry := decision.EntryResult{Allowed: true, Side: clobtypes.LONG, PriceCents: 52, SizeUsd: 25}
	res := e.ProcessEntry(context.Background(), "tok1", entry)
	require.NotNil(t, res.Position)

	got, ok := pos.Get(res.Position.ID)
	require.True(t, ok)
	assert.Equal(t, "sib1", got.OppositeTokenID)
}

func TestProcessEntryNotAllowed(t *testing.T) {
	clob := &stubClob{}
	pos := position.New(position.DefaultConfig())
	e := New(DefaultConfig(), clob, nil, nil, decision.New(decision.DefaultConfig()), pos, nil, nil, nil)

	res := e.ProcessEntry(context.Background(), "tok1", decision.EntryResult{Allowed: false, Reason: "NO_LIQUIDITY"})
	assert.False(t, res.Success)
	assert.Equal(t, 0, clob.postCalls)
}

func TestProcessExitHardExitUnwindsHedge(t *testing.T) {
	clob := &stubClob{
		postResults: []OrderResult{
			{Success: true, Status: "FILLED"}, // primary exit
			{Success: true, Status: "FILLED"}, // hedge unwind
		},
		book: clobtypes.OrderBookSnapshot{Bids: []clobtypes.NormalizedLevel{mkLevel(70)}},
	}
	posMgr := position.New(position.DefaultConfig())
	p := posMgr.OpenPosition("tok1", 60, 25)
	posMgr.SetOppositeToken(p.ID, "sib1")
	require.NoError(t, posMgr.RecordHedge(p.ID, position.HedgeLeg{TokenID: "sib1", PriceCents: 40, SizeUsd: 12.5, Ratio: 0.5}))

	e := New(DefaultConfig(), clob, nil, nil, decision.New(decision.DefaultConfig()), posMgr, nil, nil, nil)
	res := e.ProcessExit(context.Background(), p, "HARD_EXIT", 29)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.HedgeUnwound)
	assert.Equal(t, 0, res.HedgeFailed)

	got, _ := posMgr.Get(p.ID)
	assert.Equal(t, position.StateClosed, got.State)
}

func TestPlaceHedgeRejectsTinyShares(t *testing.T) {
	clob := &stubClob{book: clobtypes.OrderBookSnapshot{
		Asks: []clobtypes.NormalizedLevel{{Price: decimal.RequireFromString("0.0005"), Size: decimal.NewFromInt(1)}},
	}}
	posMgr := position.New(position.DefaultConfig())
	p := posMgr.OpenPosition("tok1", 60, 25)
	posMgr.SetOppositeToken(p.ID, "sib1")

	e := New(DefaultConfig(), clob, nil, nil, decision.New(decision.DefaultConfig()), posMgr, nil, nil, nil)
	err := e.PlaceHedge(context.Background(), p, 0.5, nil)
	assert.Error(t, err)
}
