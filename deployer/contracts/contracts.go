package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAttachMismatch is returned when an address does not hold a contract
// of the expected kind.
var ErrAttachMismatch = errors.New("attach mismatch")

// Caller is the read-only part of a chain client.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

func requireCode(ctx context.Context, c Caller, kind string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%s at zero address: %w", kind, ErrAttachMismatch)
	}
	code, err := c.CodeAt(ctx, addr)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("%s at %s has no code: %w", kind, addr.Hex(), ErrAttachMismatch)
	}
	return nil
}
