package state

import (
	"github.com/ethereum/go-ethereum/common"
)

const StateVersion = 1

// State is the report of a single run. It is written to the workdir once the
// selected workflow returns, including when it fails part way, so that
// contracts left on chain by a partial deployment can be found again.
type State struct {
	// Version versions the state so we can update it later.
	Version int `json:"version" toml:"version"`

	Network  string         `json:"network" toml:"network"`
	Workflow string         `json:"workflow" toml:"workflow"`
	Deployer common.Address `json:"deployer" toml:"deployer"`

	// Deployments lists every contract created during the run in the order
	// it was confirmed.
	Deployments []Deployment `json:"deployments" toml:"deployments"`

	Upgrade      *UpgradeRecord      `json:"upgrade,omitempty" toml:"upgrade,omitempty"`
	Verification *VerificationRecord `json:"verification,omitempty" toml:"verification,omitempty"`

	// Error is the failure that ended the run, if any.
	Error string `json:"error,omitempty" toml:"error,omitempty"`
}

type Deployment struct {
	Role     Role           `json:"role" toml:"role"`
	Contract string         `json:"contract" toml:"contract"`
	Address  common.Address `json:"address" toml:"address"`
	TxHash   common.Hash    `json:"txHash" toml:"txHash"`

	// Implementation is set for proxy-hosted contracts, where Address is the
	// proxy.
	Implementation *common.Address `json:"implementation,omitempty" toml:"implementation,omitempty"`
}

type UpgradeRecord struct {
	Proxy            common.Address `json:"proxy" toml:"proxy"`
	PreviousVerifier common.Address `json:"previousVerifier" toml:"previousVerifier"`
	NewVerifier      common.Address `json:"newVerifier" toml:"newVerifier"`
	TxHash           common.Hash    `json:"txHash" toml:"txHash"`
}

type VerificationRecord struct {
	Verifier    common.Address `json:"verifier" toml:"verifier"`
	PublicsPath string         `json:"publicsPath" toml:"publicsPath"`
	ProofPath   string         `json:"proofPath" toml:"proofPath"`
	Verified    bool           `json:"verified" toml:"verified"`
}

func NewState(network, workflow string, deployer common.Address) *State {
	return &State{
		Version:  StateVersion,
		Network:  network,
		Workflow: workflow,
		Deployer: deployer,
	}
}

func (s *State) AddDeployment(d Deployment) {
	s.Deployments = append(s.Deployments, d)
}
