package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ace-quest/ace-pozk/deployer/contracts"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

const (
	DefaultPublicsPath = "test/test_publics"
	DefaultProofPath   = "test/test_proof"
)

var (
	ErrPayloadNotFound  = errors.New("payload not found")
	ErrPayloadIO        = errors.New("payload unreadable")
	ErrVerificationCall = errors.New("verification call failed")
	ErrProofRejected    = errors.New("proof rejected by verifier")
)

// ProofArtifact is a proof and its public inputs as stored on disk. The
// content is opaque here; the verifier contract validates it.
type ProofArtifact struct {
	Publics []byte
	Proof   []byte
}

type VerificationResult struct {
	Verified    bool
	Verifier    common.Address
	PublicsPath string
	ProofPath   string
}

func ReadProofArtifact(publicsPath, proofPath string) (*ProofArtifact, error) {
	publics, err := readPayload(publicsPath)
	if err != nil {
		return nil, err
	}
	proof, err := readPayload(proofPath)
	if err != nil {
		return nil, err
	}
	return &ProofArtifact{Publics: publics, Proof: proof}, nil
}

// readPayload reads a vector file. The prover writes 0x-prefixed hex, which
// is decoded to the bytes passed on chain; any other content is passed as
// is.
func readPayload(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrPayloadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadIO, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", path, ErrPayloadIO)
	}

	text := bytes.TrimSpace(raw)
	if bytes.HasPrefix(text, []byte("0x")) {
		if decoded, err := hexutil.Decode(string(text)); err == nil {
			return decoded, nil
		}
	}
	return raw, nil
}

// Runner submits stored proofs to a deployed verifier.
type Runner struct {
	env *Env
}

func NewRunner(env *Env) *Runner {
	return &Runner{env: env}
}

// RunVerification reads both payloads, then makes one read-only verify
// call. A clean rejection is a result with Verified false; a call that could
// not run is ErrVerificationCall.
func (r *Runner) RunVerification(ctx context.Context, verifier common.Address, publicsPath, proofPath string) (*VerificationResult, error) {
	payload, err := ReadProofArtifact(publicsPath, proofPath)
	if err != nil {
		return nil, err
	}

	v, err := contracts.AttachVerifier(ctx, r.env.Chain, verifier)
	if err != nil {
		return nil, err
	}

	ok, err := v.Verify(ctx, payload.Publics, payload.Proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationCall, err)
	}

	return &VerificationResult{
		Verified:    ok,
		Verifier:    verifier,
		PublicsPath: publicsPath,
		ProofPath:   proofPath,
	}, nil
}

// VerifyProof returns a stage that checks the stored proof against verifier,
// or against the network's verifier when verifier is the zero address. A
// rejected proof fails the stage with ErrProofRejected.
func VerifyProof(verifier common.Address, publicsPath, proofPath string) Stage {
	return func(ctx context.Context, env *Env, intent *state.Intent, st *state.State) error {
		lgr := env.Logger.New("stage", "verify-proof")

		target := verifier
		if target == (common.Address{}) {
			var err error
			target, err = env.Registry.Resolve(state.RoleCompositeVerifier)
			if err != nil {
				return fmt.Errorf("no verifier given or configured: %w", err)
			}
		}
		publics, proof := publicsPath, proofPath
		if publics == "" {
			publics = DefaultPublicsPath
		}
		if proof == "" {
			proof = DefaultProofPath
		}

		lgr.Info("verifying stored proof", "verifier", target, "publics", publics, "proof", proof)
		res, err := NewRunner(env).RunVerification(ctx, target, publics, proof)
		if err != nil {
			return fmt.Errorf("error verifying proof: %w", err)
		}

		st.Verification = &state.VerificationRecord{
			Verifier:    res.Verifier,
			PublicsPath: res.PublicsPath,
			ProofPath:   res.ProofPath,
			Verified:    res.Verified,
		}
		lgr.Info("shuffle verify", "verifier", res.Verifier, "result", res.Verified)

		if !res.Verified {
			return ErrProofRejected
		}
		return nil
	}
}
