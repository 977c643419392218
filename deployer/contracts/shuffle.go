package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

const (
	InitializeMethod    = "initialize"
	SetVerifierMethod   = "setVerifier"
	VerifierMethod      = "verifier"
	SetVerifierGasLimit = 200_000
	shuffleKind         = "Shuffle"
)

var (
	funcVerifier    = w3.MustNewFunc("verifier()", "address")
	funcSetVerifier = w3.MustNewFunc("setVerifier(address)", "")
)

// Shuffle is a handle to a proxy-hosted shuffle contract.
type Shuffle struct {
	caller  Caller
	address common.Address
}

// AttachShuffle binds to an existing shuffle proxy. The address must hold
// code that answers verifier(); anything else is ErrAttachMismatch.
func AttachShuffle(ctx context.Context, c Caller, addr common.Address) (*Shuffle, error) {
	if err := requireCode(ctx, c, shuffleKind, addr); err != nil {
		return nil, err
	}
	s := &Shuffle{caller: c, address: addr}
	if _, err := s.Verifier(ctx); err != nil {
		return nil, fmt.Errorf("%s at %s does not expose verifier(): %v: %w", shuffleKind, addr.Hex(), err, ErrAttachMismatch)
	}
	return s, nil
}

func (s *Shuffle) Address() common.Address {
	return s.address
}

// Verifier returns the verifier the shuffle currently delegates to.
func (s *Shuffle) Verifier(ctx context.Context) (common.Address, error) {
	input, err := funcVerifier.EncodeArgs()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode verifier(): %w", err)
	}
	output, err := s.caller.Call(ctx, s.address, input)
	if err != nil {
		return common.Address{}, err
	}
	var verifier common.Address
	if err := funcVerifier.DecodeReturns(output, &verifier); err != nil {
		return common.Address{}, fmt.Errorf("failed to decode verifier(): %w", err)
	}
	return verifier, nil
}

func (s *Shuffle) SetVerifierData(verifier common.Address) ([]byte, error) {
	data, err := funcSetVerifier.EncodeArgs(verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to encode setVerifier: %w", err)
	}
	return data, nil
}
