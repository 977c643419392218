package deployer

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ace-quest/ace-pozk/deployer/pipeline"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

const (
	WorkflowDeploy  = "deploy"
	WorkflowUpgrade = "upgrade"
	WorkflowVerify  = "verify"
)

// Workflow is one of DeployWorkflow, UpgradeWorkflow or VerifyWorkflow.
// Exactly one runs per invocation.
type Workflow interface {
	Name() string
	stages() []namedStage
	registry(network *state.Network) (*state.Registry, error)
}

type namedStage struct {
	name  string
	stage pipeline.Stage
}

// DeployWorkflow deploys a fresh set of shuffle contracts. Addresses already
// configured for the network are ignored.
type DeployWorkflow struct{}

func (DeployWorkflow) Name() string { return WorkflowDeploy }

func (DeployWorkflow) stages() []namedStage {
	return []namedStage{
		{"deploy-contracts", pipeline.DeployContracts},
	}
}

func (DeployWorkflow) registry(*state.Network) (*state.Registry, error) {
	return state.NewRegistry(), nil
}

// UpgradeWorkflow points an existing shuffle proxy at a newly deployed
// verifier. A zero Proxy selects the network's shuffle.
type UpgradeWorkflow struct {
	Proxy common.Address
}

func (UpgradeWorkflow) Name() string { return WorkflowUpgrade }

func (w UpgradeWorkflow) stages() []namedStage {
	return []namedStage{
		{"upgrade-verifier", pipeline.UpgradeVerifier(w.Proxy)},
	}
}

func (UpgradeWorkflow) registry(network *state.Network) (*state.Registry, error) {
	return network.Registry()
}

// VerifyWorkflow checks a stored proof against a verifier. A zero Verifier
// selects the network's verifier; empty paths select the default vectors.
type VerifyWorkflow struct {
	Verifier    common.Address
	PublicsPath string
	ProofPath   string
}

func (VerifyWorkflow) Name() string { return WorkflowVerify }

func (w VerifyWorkflow) stages() []namedStage {
	return []namedStage{
		{"verify-proof", pipeline.VerifyProof(w.Verifier, w.PublicsPath, w.ProofPath)},
	}
}

func (VerifyWorkflow) registry(network *state.Network) (*state.Registry, error) {
	return network.Registry()
}
