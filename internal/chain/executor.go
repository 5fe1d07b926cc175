// Package chain holds the executor's on-chain half: building, signing, and
// submitting pullPayment calls against the recurring-payments contract, then
// waiting for one confirmation.
//
// The executor key lives only in this package's Client; the dispatcher never
// sees it. A mutex serializes submissions so at most one transaction from
// the executor key is pending at a time (chain nonce discipline).
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// pullPaymentABI is the single contract entry point the executor uses:
//
//	pullPayment(address token, address from, address to, uint256 amount, bytes32 scheduleId)
const pullPaymentABI = `[{"type":"function","name":"pullPayment","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"scheduleId","type":"bytes32"}],"outputs":[]}]`

// usdcDecimals is the token's fixed decimal precision.
const usdcDecimals = 6

// Failure classes surfaced to the bridge handler.
var (
	// ErrReverted means the transaction was mined but the contract reverted
	// (no allowance, insufficient balance, paused, ...).
	ErrReverted = errors.New("chain: pullPayment reverted")
	// ErrRPCUnavailable wraps provider connectivity and timeout failures.
	ErrRPCUnavailable = errors.New("chain: rpc unavailable")
)

// PullPaymentRequest describes one transfer to pull under a prior allowance.
type PullPaymentRequest struct {
	Token      common.Address
	From       common.Address
	To         common.Address
	Amount     *big.Int
	ScheduleID [32]byte
}

// Executor submits pull payments. The HTTP bridge depends on this interface
// so tests can substitute a fake.
type Executor interface {
	PullPayment(ctx context.Context, req PullPaymentRequest) (txHash string, err error)
}

// Client is the production Executor over an Ethereum JSON-RPC provider.
type Client struct {
	rpc            *ethclient.Client
	key            *ecdsa.PrivateKey
	from           common.Address
	contract       common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	abi            abi.ABI
	log            zerolog.Logger

	// mu enforces one pending transaction per executor key.
	mu sync.Mutex
}

// NewClient dials the RPC provider and prepares the executor account.
func NewClient(rpcURL, keyHex, contractHex string, chainID int64, confirmTimeout time.Duration, log zerolog.Logger) (*Client, error) {
	if confirmTimeout <= 0 {
		confirmTimeout = 25 * time.Second
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse executor key: %w", err)
	}
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid recurring contract address %q", contractHex)
	}
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(pullPaymentABI))
	if err != nil {
		return nil, err
	}
	return &Client{
		rpc:            rpc,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		contract:       common.HexToAddress(contractHex),
		chainID:        big.NewInt(chainID),
		confirmTimeout: confirmTimeout,
		abi:            parsed,
		log:            log,
	}, nil
}

// PullPayment builds, signs, and submits a single pullPayment call, then
// waits for inclusion. It returns the transaction hash on success, ErrReverted
// when the contract rejects the transfer, and ErrRPCUnavailable (wrapped) for
// provider failures.
func (c *Client) PullPayment(ctx context.Context, req PullPaymentRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.abi.Pack("pullPayment", req.Token, req.From, req.To, req.Amount, req.ScheduleID)
	if err != nil {
		return "", err
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	gasLimit, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		// Estimation failure usually means the call would revert on-chain
		// (missing allowance, empty balance). Report it as a revert so the
		// dispatcher schedules a retry rather than hammering the RPC.
		return "", fmt.Errorf("%w: %v", ErrReverted, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", err
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	hash := signed.Hash().Hex()
	c.log.Info().Str("tx_hash", hash).Str("from", req.From.Hex()).Str("to", req.To.Hex()).Msg("pullPayment submitted")

	// One confirmation. The wait context is detached from the caller's
	// cancellation: once submitted, the transaction outcome must be observed.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.rpc, signed)
	if err != nil {
		return hash, fmt.Errorf("%w: waiting for receipt: %v", ErrRPCUnavailable, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, ErrReverted
	}
	return hash, nil
}

// ScheduleIDBytes encodes a schedule UUID as the 32-byte, left-padded
// bytes32 value the contract expects.
func ScheduleIDBytes(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[16:], id[:])
	return out
}

// USDCUnits converts a decimal USDC amount into 6-decimal base units.
// Amounts with more than 6 fractional digits are rejected rather than
// silently truncated.
func USDCUnits(amount decimal.Decimal) (*big.Int, error) {
	shifted := amount.Shift(usdcDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds USDC precision", amount)
	}
	if shifted.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return shifted.BigInt(), nil
}
