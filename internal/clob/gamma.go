// gamma.go implements execution.MarketMetadata against Polymarket's Gamma
// API, a read-only market-metadata REST service distinct from the CLOB
// trading API that client.go talks to. Grounded on client.go's own
// http.Client + context pattern, reused here for a GET-only lookup.
package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// gammaMarket is the subset of Gamma's /markets response this engine needs:
// the pair of CLOB token ids for a market's two outcomes, plus its
// resolution state for redemption.
type gammaMarket struct {
	ConditionID  string   `json:"conditionId"`
	ClobTokenIDs []string `json:"clobTokenIds"`
	Closed       bool     `json:"closed"`
}

// GammaMetadata resolves a token's sibling outcome token id by looking up
// the market it belongs to and returning the other entry in ClobTokenIDs.
// Results are cached for the process lifetime: a market's token pair never
// changes after listing.
type GammaMetadata struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]string // tokenID -> opposite tokenID
}

// NewGammaMetadata builds a Gamma-backed MarketMetadata client.
func NewGammaMetadata(baseURL string, timeout time.Duration) *GammaMetadata {
	return &GammaMetadata{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]string),
	}
}

// OppositeTokenID implements execution.MarketMetadata.
func (g *GammaMetadata) OppositeTokenID(ctx context.Context, tokenID string) (string, error) {
	g.mu.Lock()
	if opp, ok := g.cache[tokenID]; ok {
		g.mu.Unlock()
		return opp, nil
	}
	g.mu.Unlock()

	url := fmt.Sprintf("%s/markets?clob_token_ids=%s", g.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch gamma market: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gamma market lookup: HTTP %d", resp.StatusCode)
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return "", fmt.Errorf("decode gamma market: %w", err)
	}
	if len(markets) == 0 || len(markets[0].ClobTokenIDs) != 2 {
		return "", fmt.Errorf("no market found for token %s", tokenID)
	}

	pair := markets[0].ClobTokenIDs
	opp := pair[0]
	if opp == tokenID {
		opp = pair[1]
	}

	g.mu.Lock()
	g.cache[pair[0]] = pair[1]
	g.cache[pair[1]] = pair[0]
	g.mu.Unlock()

	return opp, nil
}

// ResolvedCondition reports whether tokenID's market has closed, returning
// the condition id CTF redemption needs. Implements onchain.ConditionResolver.
func (g *GammaMetadata) ResolvedCondition(ctx context.Context, tokenID string) (common.Hash, bool, error) {
	url := fmt.Sprintf("%s/markets?clob_token_ids=%s", g.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return common.Hash{}, false, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("fetch gamma market: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.Hash{}, false, fmt.Errorf("gamma market lookup: HTTP %d", resp.StatusCode)
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return common.Hash{}, false, fmt.Errorf("decode gamma market: %w", err)
	}
	if len(markets) == 0 {
		return common.Hash{}, false, fmt.Errorf("no market found for token %s", tokenID)
	}
	if !markets[0].Closed {
		return common.Hash{}, false, nil
	}
	return common.HexToHash(markets[0].ConditionID), true, nil
}
