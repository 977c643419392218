package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

const VerifyMethod = "verify"

var funcVerify = w3.MustNewFunc("verify(bytes,bytes)", "bool")

// Verifier is a handle to a non-proxied shuffle verifier.
type Verifier struct {
	caller  Caller
	address common.Address
}

func AttachVerifier(ctx context.Context, c Caller, addr common.Address) (*Verifier, error) {
	if err := requireCode(ctx, c, "Verifier", addr); err != nil {
		return nil, err
	}
	return &Verifier{caller: c, address: addr}, nil
}

func (v *Verifier) Address() common.Address {
	return v.address
}

// Verify calls verify(publics, proof). A returned error means the call
// itself failed or returned undecodable data; a rejected proof is a nil
// error with false.
func (v *Verifier) Verify(ctx context.Context, publics, proof []byte) (bool, error) {
	input, err := funcVerify.EncodeArgs(publics, proof)
	if err != nil {
		return false, fmt.Errorf("failed to encode verify: %w", err)
	}
	output, err := v.caller.Call(ctx, v.address, input)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := funcVerify.DecodeReturns(output, &ok); err != nil {
		return false, fmt.Errorf("failed to decode verify result: %w", err)
	}
	return ok, nil
}
