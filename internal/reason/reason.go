// Package reason is the error taxonomy of spec.md §7: reasons, not Go error
// types. Every subsystem that can fail returns one of these as a value
// alongside its result, the same way the teacher's checkCriticalError
// inspects a Binance API code and returns a named condition rather than
// propagating the raw error.
package reason

type Reason string

const (
	// Book/Market-data: transient or benign-to-skip.
	NoOrderbook  Reason = "NO_ORDERBOOK"
	NotFound     Reason = "NOT_FOUND"
	RateLimit    Reason = "RATE_LIMIT"
	NetworkError Reason = "NETWORK_ERROR"
	ParseError   Reason = "PARSE_ERROR"

	// Book/Market-data: permanent market condition, never a cooldown reason.
	InvalidLiquidity Reason = "INVALID_LIQUIDITY"
	DustBook         Reason = "DUST_BOOK"
	InvalidPrices    Reason = "INVALID_PRICES"

	// Book/Health.
	EmptyBook       Reason = "EMPTY_BOOK"
	WideSpread      Reason = "WIDE_SPREAD"
	AskTooHigh      Reason = "ASK_TOO_HIGH"
	BookFetchFailed Reason = "BOOK_FETCH_FAILED"

	// Entry.
	Cooldown       Reason = "COOLDOWN"
	NoBankroll     Reason = "NO_BANKROLL"
	NoClient       Reason = "NO_CLIENT"
	NoLiquidity    Reason = "NO_LIQUIDITY"
	NetworkUnsafe  Reason = "NETWORK_UNSAFE"
	OrderRejected  Reason = "ORDER_REJECTED"

	// Exit/Hedge.
	FOKNotFilled    Reason = "FOK_NOT_FILLED"
	NoOppositeToken Reason = "NO_OPPOSITE_TOKEN"
	PriceTooLow     Reason = "PRICE_TOO_LOW"
	SizeTooSmall    Reason = "SIZE_TOO_SMALL"

	// None: no failure.
	None Reason = ""
)

// IsTransient reports whether a book/market-data reason uses the fixed
// short cooldown rather than the strike-based backoff schedule.
func IsTransient(r Reason) bool {
	switch r {
	case RateLimit, NetworkError, ParseError:
		return true
	default:
		return false
	}
}

// IsStrikeBased reports whether a reason advances the strike-based backoff
// schedule (10m/30m/2h/24h).
func IsStrikeBased(r Reason) bool {
	switch r {
	case NoOrderbook, NotFound:
		return true
	default:
		return false
	}
}

// IsPermanentMarketCondition reports whether a reason is a permanent market
// condition and must never be passed to the cooldown manager.
func IsPermanentMarketCondition(r Reason) bool {
	switch r {
	case InvalidLiquidity, DustBook, InvalidPrices:
		return true
	default:
		return false
	}
}
