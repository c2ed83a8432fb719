// external_positions.go implements controlloop.ExternalPositionSource: a
// periodic check of the engine wallet's conditional-token balances against
// a supplied token universe, reporting any holding the position manager
// doesn't already track as an external position to adopt.
package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"predatorbook/internal/controlloop"
)

// SetPriceSource installs the mid-price lookup DiscoverUntracked uses to
// value a discovered holding. Must be called before Run if position sync
// is wanted; a nil source disables discovery.
func (m *Monitor) SetPriceSource(priceOf PriceSource) {
	m.mu.Lock()
	m.priceSource = priceOf
	m.mu.Unlock()
}

// DiscoverUntracked implements controlloop.ExternalPositionSource: it reads
// the engine wallet's ERC1155 balance at ctfAddr for every candidate token
// id and reports any nonzero holding, priced via the installed
// PriceSource. The caller is responsible for skipping tokens it already
// tracks.
func (m *Monitor) DiscoverUntracked(ctx context.Context, candidateTokenIDs []string) ([]controlloop.ExternalHolding, error) {
	m.mu.Lock()
	priceOf := m.priceSource
	m.mu.Unlock()
	if priceOf == nil {
		return nil, nil
	}

	var out []controlloop.ExternalHolding
	for _, tok := range candidateTokenIDs {
		bal, err := m.ctfBalance(ctx, tok)
		if err != nil || bal.Sign() <= 0 {
			continue
		}
		priceCents, ok := priceOf(ctx, tok)
		if !ok {
			continue
		}
		shares := new(big.Float).Quo(new(big.Float).SetInt(bal), big.NewFloat(1e6))
		sharesF, _ := shares.Float64()
		out = append(out, controlloop.ExternalHolding{
			TokenID:       tok,
			OutcomeLabel:  "onchain_sync",
			AvgPriceCents: priceCents,
			SizeUsd:       sharesF * (priceCents / 100),
		})
	}
	return out, nil
}

// ctfBalance reads the wallet's ERC1155 balanceOf(address,uint256) for the
// conditional token at ctfAddr, tokenID interpreted as the decimal position
// id Polymarket assigns CLOB token ids.
func (m *Monitor) ctfBalance(ctx context.Context, tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("token id %q is not numeric", tokenID)
	}

	selector := crypto.Keccak256([]byte("balanceOf(address,uint256)"))[:4]
	data := append(append([]byte{}, selector...), common.LeftPadBytes(m.walletAddr.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(id.Bytes(), 32)...)

	res, err := m.client.CallContract(ctx, ethereum.CallMsg{To: &m.ctfAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("read ctf balance: %w", err)
	}
	return new(big.Int).SetBytes(res), nil
}
