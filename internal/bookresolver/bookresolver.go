// Package bookresolver implements the book resolver (spec.md §4.C8), the
// engine's single integrity point for order-book data: one fetch attempt
// drives health classification, pricing, and order placement, with a
// bounded retry and a same-attempt cross-source check. Grounded on
// predator_engine.go's scanForWhales (which already cross-references a
// depth-book snapshot against a persistence requirement before acting) and
// execution_service.go's FetchExchangeInfo retry-with-backoff shape.
package bookresolver

import (
	"context"
	"time"

	"predatorbook/internal/clobtypes"
	"predatorbook/internal/logging"
	"predatorbook/pkg/ids"
)

// MaxAskCents is the ASK_TOO_HIGH threshold, per spec.md §4.C8.
const MaxAskCents = 95

// Fetcher performs a single book fetch from one source.
type Fetcher interface {
	// Fetch returns a snapshot. The snapshot's FetchFailed/ParsedOk flags
	// carry the classification; err is only for fatal, non-retriable
	// caller mistakes (e.g. context canceled).
	Fetch(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error)
}

// WSCacheFetcher additionally knows whether its cached view is fresh and
// non-empty enough to serve as the primary source for this attempt.
type WSCacheFetcher interface {
	Fetcher
	IsFreshAndNonEmpty(tokenID string) bool
}

// Resolver composes a WS cache fetcher and a REST fetcher.
type Resolver struct {
	ws   WSCacheFetcher
	rest Fetcher
	log  *logging.Logger
}

// New creates a book resolver.
func New(ws WSCacheFetcher, rest Fetcher, log *logging.Logger) *Resolver {
	return &Resolver{ws: ws, rest: rest, log: log}
}

// Result is the resolveHealthyBook() return value.
type Result struct {
	Success          bool
	Snapshot         clobtypes.OrderBookSnapshot
	Health           clobtypes.BookHealthReport
	CrossChecked     bool
	CrossCheckSource clobtypes.Source
	AttemptID        string
}

// ResolveHealthyBook is the resolver's single public operation.
func (r *Resolver) ResolveHealthyBook(ctx context.Context, tokenID string, flow string, maxSpreadCents int) Result {
	attemptID := ids.New("attempt")

	primarySource := clobtypes.SourceREST
	var primary clobtypes.OrderBookSnapshot
	var err error

	if r.ws != nil && r.ws.IsFreshAndNonEmpty(tokenID) {
		primarySource = clobtypes.SourceWSCache
		primary, err = r.ws.Fetch(ctx, tokenID)
	} else {
		primary, err = r.rest.Fetch(ctx, tokenID)
	}
	primary.Source = primarySource
	primary.AttemptID = attemptID

	if err != nil || primary.FetchFailed {
		// Retry policy: sleep ~100ms, retry REST once.
		time.Sleep(100 * time.Millisecond)
		retried, retryErr := r.rest.Fetch(ctx, tokenID)
		retried.Source = clobtypes.SourceREST
		retried.AttemptID = attemptID
		if retryErr != nil || retried.FetchFailed {
			health := clobtypes.BookHealthReport{Health: clobtypes.HealthBookFetchFailed}
			r.emit(attemptID, flow, tokenID, clobtypes.SourceREST, retried, health, false)
			return Result{Success: false, Snapshot: retried, Health: health, AttemptID: attemptID}
		}
		primary = retried
		primarySource = clobtypes.SourceREST
	}

	health := classify(primary, maxSpreadCents)

	result := Result{
		Success:   health.Health == clobtypes.HealthOK,
		Snapshot:  primary,
		Health:    health,
		AttemptID: attemptID,
	}

	// Cross-check: only for DUST or EMPTY primary health, and only once.
	if health.Health == clobtypes.HealthEmptyBook || health.Health == clobtypes.HealthDustBook {
		var altFetcher Fetcher
		var altSource clobtypes.Source
		if primarySource == clobtypes.SourceREST {
			altFetcher = r.ws
			altSource = clobtypes.SourceWSCache
		} else {
			altFetcher = r.rest
			altSource = clobtypes.SourceAltREST
		}

		if altFetcher != nil {
			alt, altErr := altFetcher.Fetch(ctx, tokenID)
			alt.Source = altSource
			alt.AttemptID = attemptID
			if altErr == nil && !alt.FetchFailed {
				altHealth := classify(alt, maxSpreadCents)
				if altHealth.Health == clobtypes.HealthOK {
					result = Result{
						Success:          true,
						Snapshot:         alt,
						Health:           altHealth,
						CrossChecked:     true,
						CrossCheckSource: altSource,
						AttemptID:        attemptID,
					}
				}
			}
		}
	}

	r.emit(attemptID, flow, tokenID, primarySource, result.Snapshot, result.Health, result.Success)
	return result
}

// classify derives BookHealth from a snapshot, in the order spec.md §4.C8
// prescribes: FETCH_FAILED -> NO_DATA/PARSE_ERROR -> crossed -> EMPTY ->
// DUST -> ASK_TOO_HIGH -> WIDE_SPREAD -> OK.
func classify(s clobtypes.OrderBookSnapshot, maxSpreadCents int) clobtypes.BookHealthReport {
	if s.FetchFailed {
		return clobtypes.BookHealthReport{Health: clobtypes.HealthBookFetchFailed}
	}
	if !s.ParsedOk {
		return clobtypes.BookHealthReport{Health: clobtypes.HealthNoData}
	}

	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return clobtypes.BookHealthReport{Health: clobtypes.HealthNoData}
	}

	bidCents := bid.PriceCents()
	askCents := ask.PriceCents()
	spreadCents := askCents - bidCents

	report := clobtypes.BookHealthReport{
		BestBidCents: bidCents,
		BestAskCents: askCents,
		SpreadCents:  spreadCents,
		BidLevels:    len(s.Bids),
		AskLevels:    len(s.Asks),
	}

	if bidCents >= askCents {
		report.Health = clobtypes.HealthParseError
		return report
	}
	if bidCents <= 1 && askCents >= 99 {
		report.Health = clobtypes.HealthEmptyBook
		return report
	}
	if bidCents <= 2 && askCents >= 98 {
		report.Health = clobtypes.HealthDustBook
		return report
	}
	if askCents > MaxAskCents {
		report.Health = clobtypes.HealthAskTooHigh
		return report
	}
	if spreadCents > maxSpreadCents {
		report.Health = clobtypes.HealthWideSpread
		return report
	}
	report.Health = clobtypes.HealthOK
	return report
}

func (r *Resolver) emit(attemptID, flow, tokenID string, primarySource clobtypes.Source, s clobtypes.OrderBookSnapshot, h clobtypes.BookHealthReport, healthy bool) {
	if r.log == nil {
		return
	}
	tokenPrefix := tokenID
	if len(tokenPrefix) > 8 {
		tokenPrefix = tokenPrefix[:8]
	}
	r.log.Event("BOOK_CHECK", map[string]any{
		"attemptId":      attemptID,
		"flow":           flow,
		"tokenIdPrefix":  tokenPrefix,
		"primarySource":  primarySource,
		"bids":           len(s.Bids),
		"asks":           len(s.Asks),
		"bestBidCents":   h.BestBidCents,
		"bestAskCents":   h.BestAskCents,
		"spreadCents":    h.SpreadCents,
		"decision":       h.Health,
		"healthy":        healthy,
		"latencyMs":      s.LatencyMs,
	})
}
