// Package clob implements the ClobClient and book-fetch capabilities
// against Polymarket's CLOB REST + WebSocket APIs. The wire vocabulary here
// (TickSize, SignatureType, SignedOrder, WS* messages) is grounded on the
// reference Polymarket market-maker's pkg/types, adapted into this engine's
// own package and wired to execution.ClobClient / bookresolver.Fetcher
// rather than kept as a standalone types file.
package clob

import "fmt"

// Side is the wire-level order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the CLOB's supported order lifetimes.
type OrderType string

const (
	OrderTypeFOK OrderType = "FOK"
	OrderTypeGTC OrderType = "GTC"
)

// SignatureType identifies how an order is authorized on-chain.
type SignatureType int

const (
	SigTypeEOA SignatureType = iota
	SigTypeProxy
	SigTypeGnosisSafe
)

// TickSize is the market's minimum price increment.
type TickSize string

const (
	Tick01   TickSize = "0.1"
	Tick001  TickSize = "0.01"
	Tick0001 TickSize = "0.001"
	Tick00001 TickSize = "0.0001"
)

// Decimals returns the number of price decimal places for this tick size.
func (t TickSize) Decimals() int {
	switch t {
	case Tick01:
		return 1
	case Tick001:
		return 2
	case Tick0001:
		return 3
	case Tick00001:
		return 4
	default:
		return 2
	}
}

// AmountDecimals returns the number of decimal places used for share
// amounts, fixed at 2 regardless of tick size (matching USDC's display
// precision).
func (t TickSize) AmountDecimals() int { return 2 }

// MarketInfo is the subset of /markets metadata the engine needs.
type MarketInfo struct {
	ConditionID string
	QuestionID  string
	TokenIDs    [2]string
	Outcomes    [2]string
	TickSize    TickSize
	MinOrderSize float64
}

// UserOrder is the unsigned order the caller wants to place.
type UserOrder struct {
	TokenID  string
	Side     Side
	Price    string // decimal string in [0,1]
	Size     string // decimal string, shares
	Expiration int64
	Nonce      int64
}

// SignedOrder is a UserOrder plus its EIP-712 signature.
type SignedOrder struct {
	Order     UserOrder
	Signature string
	Signer    string
	SigType   SignatureType
}

// OrderPayload is the REST request body for order submission.
type OrderPayload struct {
	Order     SignedOrder
	OrderType OrderType
}

// OrderResponse is the CLOB's response to a submitted order.
type OrderResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	ErrorMsg     string `json:"errorMsg"`
}

// OpenOrder describes a resting order returned by /orders.
type OpenOrder struct {
	OrderID string `json:"id"`
	TokenID string `json:"asset_id"`
	Side    Side   `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"original_size"`
}

// CancelResponse is the result of a cancel-order call.
type CancelResponse struct {
	Canceled []string `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// PriceLevel is one book level as the wire encodes it: string-formatted
// decimals, parsed into clobtypes.NormalizedLevel at the boundary.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// QuotePair is a best-bid/best-ask summary.
type QuotePair struct {
	Bid PriceLevel `json:"bid"`
	Ask PriceLevel `json:"ask"`
}

// BookResponse is the raw /book REST response.
type BookResponse struct {
	Market string       `json:"market"`
	AssetID string      `json:"asset_id"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// WSBookEvent is a full order book snapshot pushed over the WS feed.
type WSBookEvent struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"`
}

// WSPriceChangeEvent is an incremental book delta.
type WSPriceChangeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Side      Side   `json:"side"`
	Size      string `json:"size"`
}

// WSTradeEvent reports a fill on the public trade tape.
type WSTradeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      Side   `json:"side"`
	Timestamp string `json:"timestamp"`
}

// WSOrderEvent reports a status change on one of the caller's own orders.
type WSOrderEvent struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"id"`
	Status    string `json:"status"`
}

// WSSubscribeMsg is the client->server subscription request.
type WSSubscribeMsg struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets_ids"`
}

// WSAuth carries API-key auth for the user-order-events channel.
type WSAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// WSUpdateMsg is the generic envelope the client demultiplexes on
// event_type before decoding into one of the WS*Event types above.
type WSUpdateMsg struct {
	EventType string `json:"event_type"`
	Raw       []byte `json:"-"`
}

func (o OrderResponse) String() string {
	return fmt.Sprintf("success=%v status=%s orderID=%s", o.Success, o.Status, o.OrderID)
}
