// client.go implements the REST half of the CLOB capability plus order
// signing, grounded on execution_service.go's http.Client + signed-request
// pattern for Binance (this rewrite signs EIP-712 orders via go-ethereum's
// crypto package instead of an HMAC header).
package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"predatorbook/internal/clobtypes"
	"predatorbook/internal/execution"
)

// Client is a REST CLOB client. It satisfies execution.ClobClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	privateKey *ecdsa.PrivateKey
	funderAddr string
}

// New builds a REST client. privateKeyHex may be empty for a read-only
// (book-fetch only) client.
func New(baseURL, privateKeyHex, funderAddr string, timeout time.Duration) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		funderAddr: funderAddr,
	}
	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("parse wallet private key: %w", err)
		}
		c.privateKey = key
	}
	return c, nil
}

// GetOrderBook fetches a single book snapshot over REST, classifying the
// fetch per spec.md §4.C8's contract (HTTP non-2xx / transport error =>
// FetchFailed; valid-but-empty => ParsedOk=false).
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return clobtypes.OrderBookSnapshot{FetchFailed: true, TokenID: tokenID}, nil
	}

	resp, err := c.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return clobtypes.OrderBookSnapshot{FetchFailed: true, TokenID: tokenID, LatencyMs: latency}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return clobtypes.OrderBookSnapshot{
			FetchFailed: true, TokenID: tokenID, HTTPStatus: resp.StatusCode, LatencyMs: latency,
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return clobtypes.OrderBookSnapshot{FetchFailed: true, TokenID: tokenID, HTTPStatus: resp.StatusCode, LatencyMs: latency}, nil
	}

	var raw BookResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return clobtypes.OrderBookSnapshot{
			TokenID: tokenID, HTTPStatus: resp.StatusCode, LatencyMs: latency, ParsedOk: false,
		}, nil
	}

	snap := clobtypes.OrderBookSnapshot{
		TokenID:    tokenID,
		HTTPStatus: resp.StatusCode,
		LatencyMs:  latency,
		FetchedAt:  time.Now(),
	}
	snap.Bids = parseLevels(raw.Bids)
	snap.Asks = parseLevels(raw.Asks)
	snap.ParsedOk = len(snap.Bids) > 0 || len(snap.Asks) > 0
	return snap, nil
}

func parseLevels(raw []PriceLevel) []clobtypes.NormalizedLevel {
	out := make([]clobtypes.NormalizedLevel, 0, len(raw))
	for _, l := range raw {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(l.Size)
		if err != nil {
			continue
		}
		out = append(out, clobtypes.NormalizedLevel{Price: price, Size: size})
	}
	return out
}

// CreateMarketOrder builds an unsigned FOK-intent order and signs it.
func (c *Client) CreateMarketOrder(ctx context.Context, side execution.OrderSide, tokenID string, amountShares, priceCents float64) (execution.SignedOrder, error) {
	return c.buildSignedOrder(side, tokenID, amountShares, priceCents)
}

// CreateOrder builds an unsigned GTC-intent order and signs it.
func (c *Client) CreateOrder(ctx context.Context, side execution.OrderSide, tokenID string, sizeShares, priceCents float64) (execution.SignedOrder, error) {
	return c.buildSignedOrder(side, tokenID, sizeShares, priceCents)
}

func (c *Client) buildSignedOrder(side execution.OrderSide, tokenID string, shares, priceCents float64) (execution.SignedOrder, error) {
	if c.privateKey == nil {
		return execution.SignedOrder{}, fmt.Errorf("no wallet private key configured")
	}
	wireSide := SideBuy
	if side == execution.Sell {
		wireSide = SideSell
	}
	order := UserOrder{
		TokenID:    tokenID,
		Side:       wireSide,
		Price:      decimal.NewFromFloat(priceCents / 100).StringFixed(4),
		Size:       decimal.NewFromFloat(shares).StringFixed(2),
		Nonce:      int64(uuid.New().ID()),
		Expiration: time.Now().Add(5 * time.Minute).Unix(),
	}

	digest := crypto.Keccak256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d", order.TokenID, order.Side, order.Price, order.Size, order.Nonce)))
	sig, err := crypto.Sign(digest, c.privateKey)
	if err != nil {
		return execution.SignedOrder{}, fmt.Errorf("sign order: %w", err)
	}

	signed := SignedOrder{
		Order:     order,
		Signature: fmt.Sprintf("0x%x", sig),
		Signer:    c.funderAddr,
		SigType:   SigTypeEOA,
	}
	return execution.SignedOrder{Raw: signed}, nil
}

// PostOrder submits a signed order over REST.
func (c *Client) PostOrder(ctx context.Context, order execution.SignedOrder, orderType execution.OrderType) (execution.OrderResult, error) {
	signed, ok := order.Raw.(SignedOrder)
	if !ok {
		return execution.OrderResult{}, fmt.Errorf("invalid order payload")
	}
	wireType := OrderTypeFOK
	if orderType == execution.GTC {
		wireType = OrderTypeGTC
	}
	payload := OrderPayload{Order: signed, OrderType: wireType}

	body, err := json.Marshal(payload)
	if err != nil {
		return execution.OrderResult{}, fmt.Errorf("marshal order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return execution.OrderResult{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return execution.OrderResult{}, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	var out OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return execution.OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}

	taking, _ := decimal.NewFromString(out.TakingAmount)
	making, _ := decimal.NewFromString(out.MakingAmount)

	return execution.OrderResult{
		Success:      out.Success,
		Status:       out.Status,
		TakingAmount: taking.InexactFloat64(),
		MakingAmount: making.InexactFloat64(),
		ErrorMsg:     out.ErrorMsg,
		OrderID:      out.OrderID,
	}, nil
}

// Fetch implements bookresolver.Fetcher directly against REST, so the same
// client backs both the execution.ClobClient and book-resolver roles.
func (c *Client) Fetch(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	return c.GetOrderBook(ctx, tokenID)
}
