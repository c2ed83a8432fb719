// ws_cache.go maintains a live order-book cache from the CLOB's WebSocket
// feed, grounded on hub.go's gorilla/websocket broadcast hub (the teacher's
// own WS connection/reconnect loop), adapted from a fan-out broadcaster to
// a single subscriber maintaining per-token book state for the book
// resolver's primary/cross-check source selection.
package clob

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"predatorbook/internal/clobtypes"
	"predatorbook/internal/logging"
)

const wsFreshWindow = 3 * time.Second

type cachedBook struct {
	snapshot clobtypes.OrderBookSnapshot
	at       time.Time
}

// WSCache subscribes to the CLOB's market-data WebSocket and keeps the
// latest book per token, satisfying bookresolver.WSCacheFetcher.
type WSCache struct {
	wsURL string
	log   *logging.Logger

	mu     sync.RWMutex
	books  map[string]cachedBook
	conn   *websocket.Conn
	subbed map[string]bool
}

// NewWSCache creates a WS cache that is not yet connected; call Run to
// start the connect/subscribe/reconnect loop.
func NewWSCache(wsURL string, log *logging.Logger) *WSCache {
	return &WSCache{
		wsURL:  wsURL,
		log:    log,
		books:  make(map[string]cachedBook),
		subbed: make(map[string]bool),
	}
}

// Run connects and reads book/price-change events until ctx is canceled,
// reconnecting with a fixed backoff on any read error — the same
// reconnect-on-drop shape as hub.go's connection loop.
func (w *WSCache) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connectAndRead(ctx); err != nil && w.log != nil {
			w.log.Warn("clob ws disconnected", map[string]any{"error": err.Error()})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *WSCache) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	assets := make([]string, 0, len(w.subbed))
	for tok := range w.subbed {
		assets = append(assets, tok)
	}
	w.mu.Unlock()

	if len(assets) > 0 {
		if err := conn.WriteJSON(WSSubscribeMsg{Type: "market", Assets: assets}); err != nil {
			return err
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleMessage(data)
	}
}

func (w *WSCache) handleMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "book":
		var ev WSBookEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		snap := clobtypes.OrderBookSnapshot{
			TokenID:   ev.AssetID,
			Source:    clobtypes.SourceWSCache,
			Bids:      parseLevels(ev.Bids),
			Asks:      parseLevels(ev.Asks),
			FetchedAt: time.Now(),
		}
		snap.ParsedOk = len(snap.Bids) > 0 || len(snap.Asks) > 0
		w.mu.Lock()
		w.books[ev.AssetID] = cachedBook{snapshot: snap, at: time.Now()}
		w.mu.Unlock()
	case "price_change":
		var ev WSPriceChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		w.applyDelta(ev)
	}
}

// applyDelta updates one side of a cached book with an incremental price
// change, matching the CLOB's price_level_change semantics (zero size
// removes the level).
func (w *WSCache) applyDelta(ev WSPriceChangeEvent) {
	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return
	}
	size, err := decimal.NewFromString(ev.Size)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cb, ok := w.books[ev.AssetID]
	if !ok {
		return
	}
	levels := cb.snapshot.Bids
	if ev.Side == SideSell {
		levels = cb.snapshot.Asks
	}

	updated := make([]clobtypes.NormalizedLevel, 0, len(levels)+1)
	replaced := false
	for _, l := range levels {
		if l.Price.Equal(price) {
			replaced = true
			if !size.IsZero() {
				updated = append(updated, clobtypes.NormalizedLevel{Price: price, Size: size})
			}
			continue
		}
		updated = append(updated, l)
	}
	if !replaced && !size.IsZero() {
		updated = append(updated, clobtypes.NormalizedLevel{Price: price, Size: size})
	}

	if ev.Side == SideSell {
		cb.snapshot.Asks = updated
	} else {
		cb.snapshot.Bids = updated
	}
	cb.at = time.Now()
	w.books[ev.AssetID] = cb
}

// Subscribe marks tokenID for a WS subscription, applied on (re)connect.
func (w *WSCache) Subscribe(tokenID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subbed[tokenID] {
		return
	}
	w.subbed[tokenID] = true
	if w.conn != nil {
		_ = w.conn.WriteJSON(WSSubscribeMsg{Type: "market", Assets: []string{tokenID}})
	}
}

// Unsubscribe drops tokenID from the subscription set.
func (w *WSCache) Unsubscribe(tokenID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.subbed, tokenID)
	delete(w.books, tokenID)
}

// Fetch returns the cached snapshot for tokenID, satisfying
// bookresolver.Fetcher.
func (w *WSCache) Fetch(ctx context.Context, tokenID string) (clobtypes.OrderBookSnapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cb, ok := w.books[tokenID]
	if !ok {
		return clobtypes.OrderBookSnapshot{TokenID: tokenID, FetchFailed: true}, nil
	}
	return cb.snapshot, nil
}

// IsFreshAndNonEmpty satisfies bookresolver.WSCacheFetcher: the cache is a
// viable primary source only within wsFreshWindow and with at least one
// level on each side.
func (w *WSCache) IsFreshAndNonEmpty(tokenID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cb, ok := w.books[tokenID]
	if !ok {
		return false
	}
	if time.Since(cb.at) > wsFreshWindow {
		return false
	}
	return len(cb.snapshot.Bids) > 0 && len(cb.snapshot.Asks) > 0
}

// ProactiveSiblingBook satisfies execution's hedgeFetcher capability: it
// returns a freshly-cached sibling book if one exists, without forcing a
// fetch.
func (w *WSCache) ProactiveSiblingBook(tokenID string) (clobtypes.OrderBookSnapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cb, ok := w.books[tokenID]
	if !ok || time.Since(cb.at) > wsFreshWindow {
		return clobtypes.OrderBookSnapshot{}, false
	}
	return cb.snapshot, true
}
