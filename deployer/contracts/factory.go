package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lmittmann/w3"
)

const ProxyGasLimit uint64 = 1_000_000

var (
	funcDeployAndCall = w3.MustNewFunc(
		"deployAndCall(address,address,bytes)", "address",
	)
	eventDeployed = w3.MustNewEvent(
		"Deployed(address indexed,address indexed,address indexed)",
	)

	ErrDeployedEventMissing = errors.New("Deployed event not found in receipt logs")
)

// ProxyFactory is a handle to an ERC1967 factory that creates a proxy and
// calls its initializer in the same transaction.
type ProxyFactory struct {
	address common.Address
}

func AttachProxyFactory(ctx context.Context, c Caller, addr common.Address) (*ProxyFactory, error) {
	if err := requireCode(ctx, c, "ERC1967Factory", addr); err != nil {
		return nil, err
	}
	return &ProxyFactory{address: addr}, nil
}

func (f *ProxyFactory) Address() common.Address {
	return f.address
}

func (f *ProxyFactory) DeployAndCallData(implementation, admin common.Address, initData []byte) ([]byte, error) {
	calldata, err := funcDeployAndCall.EncodeArgs(implementation, admin, initData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployAndCall: %w", err)
	}
	return calldata, nil
}

// ProxyAddressFromReceipt returns the proxy announced by this factory's
// Deployed event.
func (f *ProxyFactory) ProxyAddressFromReceipt(receipt *types.Receipt) (common.Address, error) {
	for _, log := range receipt.Logs {
		if log.Address != f.address {
			continue
		}
		var (
			proxy          common.Address
			implementation common.Address
			admin          common.Address
		)
		if err := eventDeployed.DecodeArgs(log, &proxy, &implementation, &admin); err == nil {
			return proxy, nil
		}
	}
	return common.Address{}, ErrDeployedEventMissing
}
