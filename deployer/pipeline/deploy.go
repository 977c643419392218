package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/contracts"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

var (
	ErrDeploymentFailed = errors.New("deployment failed")
	ErrArtifactMismatch = errors.New("artifact does not implement required methods")
)

// Step deploys one contract. Its constructor (or, when Proxied, its
// initializer) receives the addresses of DependsOn in order. Methods are
// the ABI methods the artifact must declare.
type Step struct {
	Role      state.Role
	Contract  string
	DependsOn []state.Role
	Proxied   bool
	Methods   []string
}

type Plan []Step

// DeployPlan is the full shuffle graph: both verifier keys, the composite
// verifier built from them, and the shuffle proxy pointing at the verifier.
func DeployPlan(names state.ContractNames) Plan {
	return Plan{
		{Role: state.RoleVerifierKeyA, Contract: names.VerifierKeyA},
		{Role: state.RoleVerifierKeyB, Contract: names.VerifierKeyB},
		{
			Role:      state.RoleCompositeVerifier,
			Contract:  names.CompositeVerifier,
			DependsOn: []state.Role{state.RoleVerifierKeyA, state.RoleVerifierKeyB},
			Methods:   []string{contracts.VerifyMethod},
		},
		{
			Role:      state.RoleShuffleProxy,
			Contract:  names.Shuffle,
			DependsOn: []state.Role{state.RoleCompositeVerifier},
			Proxied:   true,
			Methods:   []string{contracts.InitializeMethod, contracts.SetVerifierMethod, contracts.VerifierMethod},
		},
	}
}

// Check verifies that every dependency is produced by an earlier step or is
// already in resolved, and that no role is produced twice.
func (p Plan) Check(resolved *state.Registry) error {
	produced := make(map[state.Role]bool)
	for i, step := range p {
		if err := step.Role.Check(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if step.Contract == "" {
			return fmt.Errorf("step %d (%s) has no contract name", i, step.Role)
		}
		for _, dep := range step.DependsOn {
			if !produced[dep] && !resolved.Has(dep) {
				return fmt.Errorf("step %d (%s) depends on %s before it is deployed: %w", i, step.Role, dep, state.ErrDependencyMissing)
			}
		}
		if produced[step.Role] || resolved.Has(step.Role) {
			return fmt.Errorf("step %d (%s) is already resolved: %w", i, step.Role, state.ErrAlreadyRecorded)
		}
		produced[step.Role] = true
	}
	return nil
}

// Sequencer deploys contracts one at a time, records every address in the
// env registry and appends every deployment to the run report.
type Sequencer struct {
	env     *Env
	st      *state.State
	factory string
	lgr     log.Logger
}

// NewSequencer returns a sequencer that deploys factoryContract when a proxy
// is needed and the network has no proxy factory configured.
func NewSequencer(env *Env, st *state.State, factoryContract string) *Sequencer {
	return &Sequencer{env: env, st: st, factory: factoryContract, lgr: env.Logger}
}

// Run executes the plan in order and stops at the first error. Contracts
// deployed before the error stay on chain and in the report. Every artifact
// and the proxy factory are resolved before the first transaction.
func (s *Sequencer) Run(ctx context.Context, plan Plan) error {
	if err := plan.Check(s.env.Registry); err != nil {
		return fmt.Errorf("invalid deploy plan: %w", err)
	}
	if err := s.preflight(ctx, plan); err != nil {
		return fmt.Errorf("deploy plan not ready: %w", err)
	}
	for _, step := range plan {
		var err error
		if step.Proxied {
			_, err = s.DeployProxied(ctx, step.Role, step.Contract, step.DependsOn)
		} else {
			_, err = s.DeployLeaf(ctx, step.Role, step.Contract, step.DependsOn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DeployLeaf deploys contract with the addresses of deps as constructor
// arguments and records it under role.
func (s *Sequencer) DeployLeaf(ctx context.Context, role state.Role, contract string, deps []state.Role) (common.Address, error) {
	args, err := s.resolve(role, deps)
	if err != nil {
		return common.Address{}, err
	}

	addr, txHash, err := s.deploy(ctx, contract, args)
	if err != nil {
		return common.Address{}, err
	}

	if err := s.env.Registry.Record(role, addr); err != nil {
		return common.Address{}, err
	}
	s.st.AddDeployment(state.Deployment{
		Role:     role,
		Contract: contract,
		Address:  addr,
		TxHash:   txHash,
	})
	s.lgr.Info("contract deployed", "role", role, "contract", contract, "address", addr)
	return addr, nil
}

// DeployProxied deploys contract as an implementation, then creates an
// ERC1967 proxy for it whose initializer receives the addresses of deps. The
// proxy address, not the implementation, is recorded under role.
func (s *Sequencer) DeployProxied(ctx context.Context, role state.Role, contract string, deps []state.Role) (common.Address, error) {
	args, err := s.resolve(role, deps)
	if err != nil {
		return common.Address{}, err
	}

	factory, err := s.proxyFactory(ctx)
	if err != nil {
		return common.Address{}, err
	}

	artifact, err := s.env.Artifacts.Load(ctx, contract)
	if err != nil {
		return common.Address{}, err
	}
	initData, err := artifact.InitData(contracts.InitializeMethod, args...)
	if err != nil {
		return common.Address{}, err
	}

	implAddr, implTx, err := s.deploy(ctx, contract, nil)
	if err != nil {
		return common.Address{}, err
	}
	s.st.AddDeployment(state.Deployment{
		Role:     state.RoleImplementation,
		Contract: contract,
		Address:  implAddr,
		TxHash:   implTx,
	})
	s.lgr.Info("implementation deployed", "contract", contract, "address", implAddr)

	calldata, err := factory.DeployAndCallData(implAddr, s.env.proxyAdmin(), initData)
	if err != nil {
		return common.Address{}, err
	}
	txHash, err := s.env.Chain.SendTx(ctx, factory.Address(), calldata, contracts.ProxyGasLimit)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s proxy: %w", ErrDeploymentFailed, contract, err)
	}
	receipt, err := chain.Confirm(ctx, s.env.Chain, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s proxy: %w", ErrDeploymentFailed, contract, err)
	}
	proxyAddr, err := factory.ProxyAddressFromReceipt(receipt)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s proxy: %w", ErrDeploymentFailed, contract, err)
	}

	if err := s.env.Registry.Record(role, proxyAddr); err != nil {
		return common.Address{}, err
	}
	s.st.AddDeployment(state.Deployment{
		Role:           role,
		Contract:       contract,
		Address:        proxyAddr,
		TxHash:         txHash,
		Implementation: &implAddr,
	})
	s.lgr.Info("proxy deployed", "role", role, "contract", contract, "proxy", proxyAddr, "implementation", implAddr)
	return proxyAddr, nil
}

// preflight loads the artifact of every step and checks its methods. When a
// step is proxied it also attaches to the configured factory, or loads the
// factory artifact when none is configured.
func (s *Sequencer) preflight(ctx context.Context, plan Plan) error {
	proxied := false
	for _, step := range plan {
		methods := step.Methods
		if step.Proxied {
			methods = append([]string{contracts.InitializeMethod}, methods...)
			proxied = true
		}
		if err := s.RequireArtifact(ctx, step.Contract, methods...); err != nil {
			return err
		}
	}
	if !proxied || s.env.Registry.Has(state.RoleProxyFactory) {
		return nil
	}

	if addr := s.configuredFactory(); addr != (common.Address{}) {
		_, err := contracts.AttachProxyFactory(ctx, s.env.Chain, addr)
		return err
	}
	if s.factory == "" {
		return fmt.Errorf("no proxy factory configured and no factory contract to deploy")
	}
	return s.RequireArtifact(ctx, s.factory)
}

// RequireArtifact loads contract and fails with ErrArtifactMismatch unless
// its ABI declares every one of methods.
func (s *Sequencer) RequireArtifact(ctx context.Context, contract string, methods ...string) error {
	artifact, err := s.env.Artifacts.Load(ctx, contract)
	if err != nil {
		return err
	}
	if !artifact.Implements(methods...) {
		return fmt.Errorf("%w: %s needs %v", ErrArtifactMismatch, contract, methods)
	}
	return nil
}

func (s *Sequencer) configuredFactory() common.Address {
	if s.env.Network == nil {
		return common.Address{}
	}
	return s.env.Network.ProxyFactory
}

func (s *Sequencer) resolve(role state.Role, deps []state.Role) ([]any, error) {
	addrs, err := s.env.Registry.ResolveAll(deps)
	if err != nil {
		return nil, fmt.Errorf("cannot deploy %s: %w", role, err)
	}
	args := make([]any, len(addrs))
	for i, addr := range addrs {
		args[i] = addr
	}
	return args, nil
}

func (s *Sequencer) deploy(ctx context.Context, contract string, args []any) (common.Address, common.Hash, error) {
	artifact, err := s.env.Artifacts.Load(ctx, contract)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	data, err := artifact.DeployData(args...)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	res, err := s.env.Chain.DeployContract(ctx, data, s.env.deployGasLimit())
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("%w: %s: %w", ErrDeploymentFailed, contract, err)
	}
	s.lgr.Debug("waiting for deployment", "contract", contract, "tx", res.TxHash)
	if _, err := chain.Confirm(ctx, s.env.Chain, res.TxHash); err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("%w: %s: %w", ErrDeploymentFailed, contract, err)
	}
	return res.ContractAddress, res.TxHash, nil
}

// proxyFactory returns the factory recorded for this run, attaching to the
// network's configured factory or deploying one when none is configured.
func (s *Sequencer) proxyFactory(ctx context.Context) (*contracts.ProxyFactory, error) {
	if !s.env.Registry.Has(state.RoleProxyFactory) {
		if configured := s.configuredFactory(); configured != (common.Address{}) {
			if err := s.env.Registry.Record(state.RoleProxyFactory, configured); err != nil {
				return nil, err
			}
		} else {
			s.lgr.Info("no proxy factory configured, deploying one")
			if _, err := s.DeployLeaf(ctx, state.RoleProxyFactory, s.factory, nil); err != nil {
				return nil, err
			}
		}
	}

	addr, err := s.env.Registry.Resolve(state.RoleProxyFactory)
	if err != nil {
		return nil, err
	}
	return contracts.AttachProxyFactory(ctx, s.env.Chain, addr)
}

// DeployContracts deploys the full plan on an empty registry.
func DeployContracts(ctx context.Context, env *Env, intent *state.Intent, st *state.State) error {
	lgr := env.Logger.New("stage", "deploy-contracts")

	if env.Registry.Len() != 0 {
		return fmt.Errorf("deploy requires an empty registry, found %d entries", env.Registry.Len())
	}

	lgr.Info("deploying shuffle contracts", "deployer", env.Chain.Address())

	scoped := *env
	scoped.Logger = lgr
	if err := NewSequencer(&scoped, st, intent.Contracts.ProxyFactory).Run(ctx, DeployPlan(intent.Contracts)); err != nil {
		return fmt.Errorf("error deploying contracts: %w", err)
	}

	for _, entry := range env.Registry.Entries() {
		lgr.Info("deployed", "role", entry.Role, "address", entry.Address)
	}
	return nil
}
