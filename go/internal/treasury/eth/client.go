package eth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/treasury"
)

const payoutGasLimit = 21000 // plain value transfer

// Client is the on-chain treasury. Entry fees are plain transfers to
// the arena wallet; payouts are signed value transfers from it.
type Client struct {
	eth          *ethclient.Client
	arenaAddress common.Address
	key          *ecdsa.PrivateKey
	chainID      *big.Int
	houseFee     float64
}

// NewClient dials the RPC endpoint and derives the arena wallet from
// the private key.
func NewClient(ctx context.Context, rpcURL, privateKeyHex string, houseFee float64) (*Client, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse treasury key: %w", err)
	}

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &Client{
		eth:          ec,
		arenaAddress: crypto.PubkeyToAddress(key.PublicKey),
		key:          key,
		chainID:      chainID,
		houseFee:     houseFee,
	}, nil
}

// VerifyEntryFeePayment confirms that txRef is a mined, successful
// transfer from the player to the arena wallet and reports its value.
func (c *Client) VerifyEntryFeePayment(ctx context.Context, txRef, playerAddress string, roundID uuid.UUID) (*treasury.PaymentVerification, error) {
	if !common.IsHexAddress(playerAddress) {
		return &treasury.PaymentVerification{Reason: "invalid player address"}, nil
	}

	txHash := common.HexToHash(txRef)
	tx, pending, err := c.eth.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("fetch tx %s: %w", txRef, err)
	}
	if pending {
		return &treasury.PaymentVerification{Reason: "transaction not yet mined"}, nil
	}
	if tx.To() == nil || *tx.To() != c.arenaAddress {
		return &treasury.PaymentVerification{Reason: "transaction not addressed to arena wallet"}, nil
	}

	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", txRef, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &treasury.PaymentVerification{Reason: "transaction reverted"}, nil
	}

	sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	if sender != common.HexToAddress(playerAddress) {
		return &treasury.PaymentVerification{Reason: "transaction sender does not match player"}, nil
	}

	return &treasury.PaymentVerification{
		Valid:  true,
		Amount: weiToEth(tx.Value()),
	}, nil
}

// SendPrizePayout transfers the net prize (gross minus house fee) to
// the winner and returns the tx hash without waiting for confirmation.
func (c *Client) SendPrizePayout(ctx context.Context, winnerAddress string, roundID uuid.UUID, grossPrizePool float64) (*treasury.PayoutReceipt, error) {
	if !common.IsHexAddress(winnerAddress) {
		return nil, fmt.Errorf("invalid winner address %q", winnerAddress)
	}

	net := grossPrizePool * (1 - c.houseFee)
	value := ethToWei(net)
	to := common.HexToAddress(winnerAddress)

	nonce, err := c.eth.PendingNonceAt(ctx, c.arenaAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, payoutGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign payout tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send payout tx: %w", err)
	}

	log.Info().
		Str("round_id", roundID.String()).
		Str("winner", winnerAddress).
		Float64("amount", net).
		Str("tx_hash", signed.Hash().Hex()).
		Msg("prize payout sent")

	return &treasury.PayoutReceipt{
		TxHash: signed.Hash().Hex(),
		Amount: net,
	}, nil
}

func weiToEth(wei *big.Int) float64 {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

func ethToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18))
	wei, _ := f.Int(nil)
	return wei
}
