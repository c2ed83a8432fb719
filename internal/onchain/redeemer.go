// redeemer.go implements controlloop.Redeemer: periodic CTF position
// redemption and a POL (native gas token) balance check, grounded on the
// same ethclient.Client connection Monitor polls balances over.
package onchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"predatorbook/internal/position"
)

const redeemPositionsABI = `[{"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSets","type":"uint256[]"}],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// ConditionResolver reports whether a token's market has resolved, and the
// condition id needed to redeem it. Implemented by clob.GammaMetadata.
type ConditionResolver interface {
	ResolvedCondition(ctx context.Context, tokenID string) (common.Hash, bool, error)
}

// PositionLister supplies the currently tracked positions to check for
// resolution. Implemented by *position.Manager.
type PositionLister interface {
	OpenPositions() []*position.ManagedPosition
}

// Redeemer calls the CTF contract's redeemPositions for every resolved
// market still held, and flags when the wallet's native POL balance runs
// low, per spec.md §6's housekeeping pair.
type Redeemer struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	walletAddr common.Address
	ctfAddr    common.Address
	usdcAddr   common.Address
	minPOLWei  *big.Int
	abi        abi.ABI

	conditions ConditionResolver
	positions  PositionLister
}

// NewRedeemer builds a Redeemer signing transactions with privateKeyHex.
func NewRedeemer(client *ethclient.Client, privateKeyHex string, ctfAddr, usdcAddr common.Address, minPOLWei *big.Int, conditions ConditionResolver, positions PositionLister) (*Redeemer, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(redeemPositionsABI))
	if err != nil {
		return nil, fmt.Errorf("parse redeemPositions abi: %w", err)
	}
	return &Redeemer{
		client:     client,
		privateKey: key,
		walletAddr: crypto.PubkeyToAddress(key.PublicKey),
		ctfAddr:    ctfAddr,
		usdcAddr:   usdcAddr,
		minPOLWei:  minPOLWei,
		abi:        parsedABI,
		conditions: conditions,
		positions:  positions,
	}, nil
}

// RedeemResolved implements controlloop.Redeemer: it checks every currently
// tracked position's market for resolution and redeems each one found
// closed, returning the count successfully submitted.
func (r *Redeemer) RedeemResolved(ctx context.Context) (int, error) {
	if r.conditions == nil || r.positions == nil {
		return 0, nil
	}

	redeemed := 0
	seen := make(map[common.Hash]bool)
	for _, p := range r.positions.OpenPositions() {
		conditionID, resolved, err := r.conditions.ResolvedCondition(ctx, p.TokenID)
		if err != nil || !resolved || seen[conditionID] {
			continue
		}
		seen[conditionID] = true
		if err := r.redeemPositions(ctx, conditionID); err != nil {
			continue
		}
		redeemed++
	}
	return redeemed, nil
}

func (r *Redeemer) redeemPositions(ctx context.Context, conditionID common.Hash) error {
	indexSets := []*big.Int{big.NewInt(1), big.NewInt(2)} // both binary outcomes
	data, err := r.abi.Pack("redeemPositions", r.usdcAddr, common.Hash{}, conditionID, indexSets)
	if err != nil {
		return fmt.Errorf("pack redeemPositions: %w", err)
	}
	return r.sendTx(ctx, r.ctfAddr, big.NewInt(0), data)
}

func (r *Redeemer) sendTx(ctx context.Context, to common.Address, value *big.Int, data []byte) error {
	nonce, err := r.client.PendingNonceAt(ctx, r.walletAddr)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch gas price: %w", err)
	}
	chainID, err := r.client.NetworkID(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, 300000, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), r.privateKey)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return r.client.SendTransaction(ctx, signed)
}

// TopUpPOL implements controlloop.Redeemer: it checks the wallet's native
// balance against minPOLWei. This engine has no automated funding source,
// so a shortfall is reported as an error for the caller to alert on rather
// than silently ignored.
func (r *Redeemer) TopUpPOL(ctx context.Context) error {
	bal, err := r.client.BalanceAt(ctx, r.walletAddr, nil)
	if err != nil {
		return fmt.Errorf("read POL balance: %w", err)
	}
	if bal.Cmp(r.minPOLWei) >= 0 {
		return nil
	}
	return fmt.Errorf("POL balance %s below minimum %s, manual top-up required", bal.String(), r.minPOLWei.String())
}
