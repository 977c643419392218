package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/contracts"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

type UpgradeResult struct {
	Proxy            common.Address
	PreviousVerifier common.Address
	NewVerifier      common.Address
	TxHash           common.Hash
}

// Coordinator repoints an existing shuffle proxy at a newly deployed
// verifier. It never creates the proxy.
type Coordinator struct {
	env *Env
	seq *Sequencer
	lgr log.Logger
}

func NewCoordinator(env *Env, st *state.State) *Coordinator {
	return &Coordinator{
		env: env,
		seq: NewSequencer(env, st, ""),
		lgr: env.Logger,
	}
}

// Upgrade attaches to proxy, deploys contract under RoleUpgradeVerifier with
// the addresses of deps as constructor arguments and sends a single
// setVerifier transaction. The proxy is unchanged unless that transaction
// is confirmed.
func (c *Coordinator) Upgrade(ctx context.Context, proxy common.Address, contract string, deps []state.Role) (*UpgradeResult, error) {
	shuffle, err := contracts.AttachShuffle(ctx, c.env.Chain, proxy)
	if err != nil {
		return nil, err
	}
	previous, err := shuffle.Verifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current verifier: %w", err)
	}
	c.lgr.Info("upgrading shuffle verifier", "proxy", proxy, "current", previous)

	if err := c.seq.RequireArtifact(ctx, contract, contracts.VerifyMethod); err != nil {
		return nil, err
	}

	newVerifier, err := c.seq.DeployLeaf(ctx, state.RoleUpgradeVerifier, contract, deps)
	if err != nil {
		return nil, err
	}

	data, err := shuffle.SetVerifierData(newVerifier)
	if err != nil {
		return nil, err
	}
	txHash, err := c.env.Chain.SendTx(ctx, proxy, data, contracts.SetVerifierGasLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: setVerifier: %w", ErrDeploymentFailed, err)
	}
	if _, err := chain.Confirm(ctx, c.env.Chain, txHash); err != nil {
		return nil, fmt.Errorf("%w: setVerifier: %w", ErrDeploymentFailed, err)
	}

	current, err := shuffle.Verifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read verifier after upgrade: %w", err)
	}
	if current != newVerifier {
		return nil, fmt.Errorf("setVerifier %s confirmed but proxy reports %s", newVerifier.Hex(), current.Hex())
	}

	return &UpgradeResult{
		Proxy:            proxy,
		PreviousVerifier: previous,
		NewVerifier:      newVerifier,
		TxHash:           txHash,
	}, nil
}

// UpgradeVerifier returns a stage that upgrades proxy, or the network's
// shuffle proxy when proxy is the zero address.
func UpgradeVerifier(proxy common.Address) Stage {
	return func(ctx context.Context, env *Env, intent *state.Intent, st *state.State) error {
		lgr := env.Logger.New("stage", "upgrade-verifier")

		target := proxy
		if target == (common.Address{}) {
			var err error
			target, err = env.Registry.Resolve(state.RoleShuffleProxy)
			if err != nil {
				return fmt.Errorf("no shuffle proxy given or configured: %w", err)
			}
		}

		scoped := *env
		scoped.Logger = lgr
		res, err := NewCoordinator(&scoped, st).Upgrade(ctx, target, intent.Contracts.UpgradeVerifier, []state.Role{state.RoleVerifierKeyA, state.RoleVerifierKeyB})
		if err != nil {
			return fmt.Errorf("error upgrading verifier: %w", err)
		}

		st.Upgrade = &state.UpgradeRecord{
			Proxy:            res.Proxy,
			PreviousVerifier: res.PreviousVerifier,
			NewVerifier:      res.NewVerifier,
			TxHash:           res.TxHash,
		}
		lgr.Info("shuffle verifier upgraded", "proxy", res.Proxy, "previous", res.PreviousVerifier, "new", res.NewVerifier, "tx", res.TxHash)
		return nil
	}
}
