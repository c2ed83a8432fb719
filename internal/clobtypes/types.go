// Package clobtypes holds the shared vocabulary for the engine: order book
// levels and snapshots, health classification, and the wire-level price
// representation. It has no dependency on any other internal package, the
// same role the teacher's own shared structs (Trade, Alert, Signal in
// main.go) play for whale-radar.
package clobtypes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or a position.
type Side string

const (
	LONG  Side = "LONG"
	SHORT Side = "SHORT"
	NONE  Side = "NONE"
)

// Source identifies where an OrderBookSnapshot came from.
type Source string

const (
	SourceWSCache  Source = "WS_CACHE"
	SourceREST     Source = "REST"
	SourceAltREST  Source = "ALT_REST"
)

// NormalizedLevel is an immutable book level: price in [0,1], positive size.
type NormalizedLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// PriceCents returns the level's price rounded to integer cents.
func (l NormalizedLevel) PriceCents() int {
	return int(l.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// OrderBookSnapshot is one fetch attempt, per spec.md §3: a single-snapshot
// invariant holds — the snapshot that drives health classification is the
// same one used for pricing and order placement.
type OrderBookSnapshot struct {
	AttemptID   string
	TokenID     string
	Source      Source
	Bids        []NormalizedLevel // sorted descending by price
	Asks        []NormalizedLevel // sorted ascending by price
	HTTPStatus  int               // 0 if not a REST fetch
	LatencyMs   int64
	ParsedOk    bool
	FetchFailed bool
	FetchedAt   time.Time
}

// BestBid returns the first bid level, or a zero level if there are none.
func (s OrderBookSnapshot) BestBid() (NormalizedLevel, bool) {
	if len(s.Bids) == 0 {
		return NormalizedLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the first ask level, or a zero level if there are none.
func (s OrderBookSnapshot) BestAsk() (NormalizedLevel, bool) {
	if len(s.Asks) == 0 {
		return NormalizedLevel{}, false
	}
	return s.Asks[0], true
}

// Crossed reports whether the book violates bid < ask (only meaningful when
// ParsedOk and both sides are non-empty).
func (s OrderBookSnapshot) Crossed() bool {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return false
	}
	return !bid.Price.LessThan(ask.Price)
}

// Health is the classification derived from a snapshot, per spec.md §3/§4.C8.
type Health string

const (
	HealthOK               Health = "OK"
	HealthEmptyBook        Health = "EMPTY_BOOK"
	HealthDustBook         Health = "DUST_BOOK"
	HealthWideSpread       Health = "WIDE_SPREAD"
	HealthAskTooHigh       Health = "ASK_TOO_HIGH"
	HealthNoData           Health = "NO_DATA"
	HealthParseError       Health = "PARSE_ERROR"
	HealthBookFetchFailed  Health = "BOOK_FETCH_FAILED"
)

// BookHealthReport is the classification result plus the values it was
// derived from, kept distinct from the snapshot itself so the snapshot
// remains an immutable fetch record.
type BookHealthReport struct {
	Health        Health
	BestBidCents  int
	BestAskCents  int
	SpreadCents   int
	BidLevels     int
	AskLevels     int
}
