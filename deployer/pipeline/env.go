package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ace-quest/ace-pozk/deployer/artifacts"
	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/contracts"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

const (
	IntentFile = "intent.toml"
	StateFile  = "state.json"

	DefaultDeployGasLimit uint64 = 8_000_000
)

// ChainClient is what the pipeline needs from the chain: a single signer
// that deploys, sends and reads, one operation at a time.
type ChainClient interface {
	contracts.Caller
	chain.ReceiptWaiter
	Address() common.Address
	DeployContract(ctx context.Context, data []byte, gasLimit uint64) (chain.DeployResult, error)
	SendTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (common.Hash, error)
}

type Env struct {
	Workdir string
	// ReportFile is the run report name inside Workdir, StateFile when
	// empty. A .toml name writes TOML.
	ReportFile string
	Network    *state.Network
	Chain      ChainClient
	Artifacts  artifacts.Source
	// Registry is scoped to one run. It starts empty for a deployment and
	// seeded from Network for upgrades and verification.
	Registry *state.Registry
	// ProxyAdmin administers proxies created by the run. Defaults to the
	// signer.
	ProxyAdmin     common.Address
	DeployGasLimit uint64
	Logger         log.Logger
}

func (e *Env) deployGasLimit() uint64 {
	if e.DeployGasLimit == 0 {
		return DefaultDeployGasLimit
	}
	return e.DeployGasLimit
}

func (e *Env) proxyAdmin() common.Address {
	if e.ProxyAdmin == (common.Address{}) {
		return e.Chain.Address()
	}
	return e.ProxyAdmin
}

// ReadIntent reads intent.toml from the workdir on top of the built-in
// intent. Networks named in the file replace built-in ones of the same name.
// A missing file leaves the built-in intent as is.
func (e *Env) ReadIntent() (*state.Intent, error) {
	intent := state.DefaultIntent()
	if e.Workdir == "" {
		return intent, nil
	}
	intentPath := path.Join(e.Workdir, IntentFile)
	if err := state.ReadTOMLFile(intentPath, intent); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.Logger.Info("no intent file, using built-in networks", "path", intentPath)
			return state.DefaultIntent(), nil
		}
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}
	return intent, nil
}

func (e *Env) WriteState(st *state.State) error {
	if e.Workdir == "" {
		return nil
	}
	reportFile := e.ReportFile
	if reportFile == "" {
		reportFile = StateFile
	}
	if err := state.WriteFile(path.Join(e.Workdir, reportFile), st); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

type Stage func(ctx context.Context, env *Env, intent *state.Intent, st *state.State) error
