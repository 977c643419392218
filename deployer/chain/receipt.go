package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Confirm waits for txHash and fails with ErrTxReverted unless the
// transaction succeeded.
func Confirm(ctx context.Context, w ReceiptWaiter, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := w.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for tx %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("tx %s: %w", txHash.Hex(), ErrTxReverted)
	}
	return receipt, nil
}
