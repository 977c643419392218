package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"
)

const DefaultPollInterval = 2 * time.Second

var ErrTxReverted = errors.New("transaction reverted")

type DeployResult struct {
	TxHash          common.Hash
	ContractAddress common.Address
}

type Config struct {
	RPCURL string
	// ChainID is read from the endpoint when nil.
	ChainID      *big.Int
	PrivateKey   *ecdsa.PrivateKey
	GasFeeCap    *big.Int
	GasTipCap    *big.Int
	PollInterval time.Duration
	Logger       log.Logger
}

func (c *Config) Check() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url must be specified")
	}

	if c.PrivateKey == nil {
		return fmt.Errorf("private key must be specified")
	}

	if c.GasFeeCap == nil || c.GasTipCap == nil {
		return fmt.Errorf("gas fee cap and gas tip cap must be specified")
	}

	if c.GasTipCap.Cmp(c.GasFeeCap) > 0 {
		return fmt.Errorf("gas tip cap %s exceeds gas fee cap %s", c.GasTipCap, c.GasFeeCap)
	}

	if c.Logger == nil {
		return fmt.Errorf("logger must be specified")
	}

	return nil
}

// Deployer signs and submits EIP-1559 transactions from a single key. It
// issues one transaction at a time and reads the nonce from the node before
// each one.
type Deployer struct {
	client       *w3.Client
	signer       types.Signer
	key          *ecdsa.PrivateKey
	address      common.Address
	gasFeeCap    *big.Int
	gasTipCap    *big.Int
	pollInterval time.Duration
	lgr          log.Logger
}

func NewDeployer(ctx context.Context, cfg Config) (*Deployer, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}

	client, err := w3.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == nil {
		var id uint64
		if err := client.CallCtx(ctx, eth.ChainID().Returns(&id)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		chainID = new(big.Int).SetUint64(id)
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	return &Deployer{
		client:       client,
		signer:       types.NewLondonSigner(chainID),
		key:          cfg.PrivateKey,
		address:      crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		gasFeeCap:    cfg.GasFeeCap,
		gasTipCap:    cfg.GasTipCap,
		pollInterval: pollInterval,
		lgr:          cfg.Logger,
	}, nil
}

func (d *Deployer) Address() common.Address {
	return d.address
}

func (d *Deployer) Close() error {
	return d.client.Close()
}

func (d *Deployer) getNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	if err := d.client.CallCtx(ctx, eth.Nonce(d.address, nil).Returns(&nonce)); err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

func (d *Deployer) sendTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, d.signer, d.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign tx: %w", err)
	}
	var txHash common.Hash
	if err := d.client.CallCtx(ctx, eth.SendTx(signedTx).Returns(&txHash)); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send tx: %w", err)
	}
	d.lgr.Debug("sent transaction", "hash", txHash, "nonce", signedTx.Nonce(), "to", signedTx.To())
	return signedTx.Hash(), nil
}

// DeployContract sends a contract creation transaction. The returned address
// is derived from the sender nonce and holds code only once the transaction
// is confirmed.
func (d *Deployer) DeployContract(ctx context.Context, data []byte, gasLimit uint64) (DeployResult, error) {
	nonce, err := d.getNonce(ctx)
	if err != nil {
		return DeployResult{}, err
	}

	contractAddr := crypto.CreateAddress(d.address, nonce)

	// EIP-1559 only
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.signer.ChainID(),
		Nonce:     nonce,
		GasFeeCap: d.gasFeeCap,
		GasTipCap: d.gasTipCap,
		Gas:       gasLimit,
		Data:      data,
	})

	txHash, err := d.sendTx(ctx, tx)
	if err != nil {
		return DeployResult{}, err
	}

	return DeployResult{
		TxHash:          txHash,
		ContractAddress: contractAddr,
	}, nil
}

func (d *Deployer) SendTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	nonce, err := d.getNonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.signer.ChainID(),
		Nonce:     nonce,
		To:        &to,
		GasFeeCap: d.gasFeeCap,
		GasTipCap: d.gasTipCap,
		Gas:       gasLimit,
		Data:      data,
	})

	return d.sendTx(ctx, tx)
}

// WaitForReceipt polls until the receipt is available or ctx is done. Only
// a missing receipt is polled again; any other RPC error is returned. It
// does not check the receipt status.
func (d *Deployer) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := d.client.CallCtx(ctx, eth.TxReceipt(txHash).Returns(&receipt))
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !receiptPending(err):
			return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// receiptPending reports whether err only says that the node has no receipt
// yet. JSON-RPC errors never do.
func receiptPending(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	return errors.Is(err, ethereum.NotFound) || strings.HasSuffix(err.Error(), ethereum.NotFound.Error())
}

// Call runs a read-only eth_call against the latest block.
func (d *Deployer) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var output []byte
	msg := &w3types.Message{From: d.address, To: &to, Input: data}
	if err := d.client.CallCtx(ctx, eth.Call(msg, nil, nil).Returns(&output)); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", to.Hex(), err)
	}
	return output, nil
}

func (d *Deployer) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	if err := d.client.CallCtx(ctx, eth.Code(addr, nil).Returns(&code)); err != nil {
		return nil, fmt.Errorf("failed to get code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}
