// Package onchain implements the optional OnChainMonitor (spec.md §6) via
// go-ethereum's ethclient, grounded on ChoSanghyuk-blackholedex's on-chain
// polling pattern (a periodic ethclient.Client call diffed against the last
// seen state) adapted from swap-pool balances to conditional-token (ERC1155)
// balances and Polymarket's trade-settlement events.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// WhaleTradeEvent mirrors a LeaderboardTrade sourced from the chain rather
// than the leaderboard API, de-duplicated downstream by bias.Accumulator.
type WhaleTradeEvent struct {
	Wallet    common.Address
	TokenID   string
	SizeUsd   float64
	PriceCents float64
	Timestamp time.Time
}

// PositionChangeEvent reports a change in the engine wallet's own holding of
// a conditional token, used to invalidate the position cache.
type PositionChangeEvent struct {
	TokenID      string
	NewBalance   *big.Int
	Timestamp    time.Time
}

// Monitor polls an Ethereum-compatible RPC endpoint (Polygon, for
// Polymarket) for conditional-token balance changes on the engine's own
// wallet, and for CTF transfer logs whose USD value clears a whale threshold.
type Monitor struct {
	client       *ethclient.Client
	walletAddr   common.Address
	ctfAddr      common.Address
	usdcAddr     common.Address
	pollInterval time.Duration

	mu           sync.Mutex
	lastBalances map[string]*big.Int

	lastWhaleBlock uint64
	priceSource    PriceSource

	positionChanges chan PositionChangeEvent
	whaleTrades     chan WhaleTradeEvent
}

// Dial connects to rpcURL and builds a Monitor watching walletAddr's
// conditional-token balances at ctfAddr (Polymarket's CTF contract) and
// USDC balance at usdcAddr.
func Dial(ctx context.Context, rpcURL string, walletAddr, ctfAddr, usdcAddr common.Address, pollInterval time.Duration) (*Monitor, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		client:          client,
		walletAddr:      walletAddr,
		ctfAddr:         ctfAddr,
		usdcAddr:        usdcAddr,
		pollInterval:    pollInterval,
		lastBalances:    make(map[string]*big.Int),
		positionChanges: make(chan PositionChangeEvent, 64),
		whaleTrades:     make(chan WhaleTradeEvent, 256),
	}, nil
}

// Client exposes the underlying RPC connection for collaborators (the
// redemption signer) that need to share it rather than open a second dial.
func (m *Monitor) Client() *ethclient.Client { return m.client }

// PositionChanges returns the channel of detected balance changes.
func (m *Monitor) PositionChanges() <-chan PositionChangeEvent { return m.positionChanges }

// WhaleTrades returns the channel of detected whale settlement events.
func (m *Monitor) WhaleTrades() <-chan WhaleTradeEvent { return m.whaleTrades }

// Run polls balances for the given token ids, and whale-sized CTF transfers
// above whaleThresholdUsd (priced via priceOf), until ctx is canceled. Any
// of watchedTokenIDs/balanceOf/priceOf may be nil/empty to disable that
// half of the poll.
func (m *Monitor) Run(ctx context.Context, watchedTokenIDs []string, balanceOf func(ctx context.Context, tokenID string) (*big.Int, error), priceOf PriceSource, whaleThresholdUsd float64) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if balanceOf != nil {
				m.pollOnce(ctx, watchedTokenIDs, balanceOf)
			}
			if priceOf != nil {
				m.pollWhaleTrades(ctx, priceOf, whaleThresholdUsd)
			}
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context, tokenIDs []string, balanceOf func(ctx context.Context, tokenID string) (*big.Int, error)) {
	for _, tok := range tokenIDs {
		bal, err := balanceOf(ctx, tok)
		if err != nil {
			continue
		}
		m.mu.Lock()
		prev, ok := m.lastBalances[tok]
		m.lastBalances[tok] = bal
		m.mu.Unlock()

		if !ok || prev.Cmp(bal) != 0 {
			select {
			case m.positionChanges <- PositionChangeEvent{TokenID: tok, NewBalance: bal, Timestamp: time.Now()}:
			default:
			}
		}
	}
}

// PriceSource resolves a conditional token's current mid price in cents,
// used to size a detected on-chain transfer into a USD trade value.
type PriceSource func(ctx context.Context, tokenID string) (priceCents float64, ok bool)

var transferSingleTopic = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))

// pollWhaleTrades scans ERC1155 TransferSingle logs emitted by ctfAddr
// since the last seen block. Transfers clearing whaleThresholdUsd are
// reported on the whaleTrades channel as a LeaderboardTrade-shaped event,
// de-duplicated downstream from the REST leaderboard feed by
// bias.Accumulator.Ingest.
func (m *Monitor) pollWhaleTrades(ctx context.Context, priceOf PriceSource, whaleThresholdUsd float64) {
	latest, err := m.client.BlockNumber(ctx)
	if err != nil {
		return
	}

	m.mu.Lock()
	fromBlock := m.lastWhaleBlock
	m.mu.Unlock()
	if fromBlock == 0 || fromBlock > latest {
		fromBlock = latest
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{m.ctfAddr},
		Topics:    [][]common.Hash{{transferSingleTopic}},
	}
	logs, err := m.client.FilterLogs(ctx, query)
	if err == nil {
		for _, lg := range logs {
			m.emitWhaleTrade(ctx, lg, priceOf, whaleThresholdUsd)
		}
	}

	m.mu.Lock()
	m.lastWhaleBlock = latest + 1
	m.mu.Unlock()
}

func (m *Monitor) emitWhaleTrade(ctx context.Context, lg types.Log, priceOf PriceSource, whaleThresholdUsd float64) {
	if len(lg.Topics) < 4 || len(lg.Data) < 64 {
		return
	}

	to := common.BytesToAddress(lg.Topics[3].Bytes())
	tokenID := new(big.Int).SetBytes(lg.Data[:32]).String()
	amountRaw := new(big.Int).SetBytes(lg.Data[32:64])

	priceCents, ok := priceOf(ctx, tokenID)
	if !ok || priceCents <= 0 {
		return
	}

	shares := new(big.Float).Quo(new(big.Float).SetInt(amountRaw), big.NewFloat(1e6))
	sharesF, _ := shares.Float64()
	sizeUsd := sharesF * (priceCents / 100)
	if sizeUsd < whaleThresholdUsd {
		return
	}

	select {
	case m.whaleTrades <- WhaleTradeEvent{
		Wallet:     to,
		TokenID:    tokenID,
		SizeUsd:    sizeUsd,
		PriceCents: priceCents,
		Timestamp:  time.Now(),
	}:
	default:
	}
}

// BalanceUsd reads the engine wallet's USDC balance via a raw ERC20
// balanceOf eth_call, satisfying controlloop.WalletBalance. USDC on Polygon
// carries 6 decimals.
func (m *Monitor) BalanceUsd(ctx context.Context) (float64, error) {
	selector := crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	data := append(append([]byte{}, selector...), common.LeftPadBytes(m.walletAddr.Bytes(), 32)...)

	res, err := m.client.CallContract(ctx, ethereum.CallMsg{To: &m.usdcAddr, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("read usdc balance: %w", err)
	}
	raw := new(big.Int).SetBytes(res)
	usdc := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(1e6))
	f, _ := usdc.Float64()
	return f, nil
}

// Close releases the underlying RPC connection.
func (m *Monitor) Close() {
	m.client.Close()
}
