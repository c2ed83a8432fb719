package bookresolver

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"predatorbook/internal/clobtypes"
)

type fakeFetcher struct {
	snap clobtypes.OrderBookSnapshot
	err  error
	fresh bool
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func (f *fakeFetcher) IsFreshAndNonEmpty(tokenID string) bool { return f.fresh }

func level(priceCents int, size string) clobtypes.NormalizedLevel {
	return clobtypes.NormalizedLevel{
		Price: decimal.NewFromInt(int64(priceCents)).Div(decimal.NewFromInt(100)),
		Size:  decimal.RequireFromString(size),
	}
}

func TestResolveHealthyBookOK(t *testing.T) {
	rest := &fakeFetcher{snap: clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(48, "100")},
		Asks:     []clobtypes.NormalizedLevel{level(52, "100")},
	}}
	r := New(nil, rest, nil)
	res := r.ResolveHealthyBook(context.Background(), "tok1", "SCAN", 10)
	assert.True(t, res.Success)
	assert.Equal(t, clobtypes.HealthOK, res.Health.Health)
	assert.False(t, res.CrossChecked)
}

func TestResolveHealthyBookEmptyBookTriggersCrossCheck(t *testing.T) {
	rest := &fakeFetcher{fresh: false, snap: clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(1, "1")},
		Asks:     []clobtypes.NormalizedLevel{level(99, "1")},
	}}
	ws := &fakeFetcher{fresh: false, snap: clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(47, "50")},
		Asks:     []clobtypes.NormalizedLevel{level(53, "50")},
	}}
	r := New(ws, rest, nil)
	res := r.ResolveHealthyBook(context.Background(), "tok1", "SCAN", 10)
	assert.True(t, res.Success)
	assert.True(t, res.CrossChecked)
	assert.Equal(t, clobtypes.SourceWSCache, res.CrossCheckSource)
}

func TestResolveHealthyBookFetchFailedRetriesOnceThenFails(t *testing.T) {
	rest := &fakeFetcher{snap: clobtypes.OrderBookSnapshot{FetchFailed: true}}
	r := New(nil, rest, nil)
	start := time.Now()
	res := r.ResolveHealthyBook(context.Background(), "tok1", "SCAN", 10)
	elapsed := time.Since(start)
	assert.False(t, res.Success)
	assert.Equal(t, clobtypes.HealthBookFetchFailed, res.Health.Health)
	assert.Equal(t, 2, rest.calls)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestResolveHealthyBookWideSpread(t *testing.T) {
	rest := &fakeFetcher{snap: clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(40, "100")},
		Asks:     []clobtypes.NormalizedLevel{level(60, "100")},
	}}
	r := New(nil, rest, nil)
	res := r.ResolveHealthyBook(context.Background(), "tok1", "SCAN", 10)
	assert.False(t, res.Success)
	assert.Equal(t, clobtypes.HealthWideSpread, res.Health.Health)
}

func TestResolveHealthyBookAskTooHigh(t *testing.T) {
	rest := &fakeFetcher{snap: clobtypes.OrderBookSnapshot{
		ParsedOk: true,
		Bids:     []clobtypes.NormalizedLevel{level(90, "100")},
		Asks:     []clobtypes.NormalizedLevel{level(97, "100")},
	}}
	r := New(nil, rest, nil)
	res := r.ResolveHealthyBook(context.Background(), "tok1", "SCAN", 10)
	assert.False(t, res.Success)
	assert.Equal(t, clobtypes.HealthAskTooHigh, res.Health.Health)
}
