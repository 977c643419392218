package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	NetworkBaseSepolia   = "base-sepolia"
	NetworkZytronTestnet = "zytron-testnet"

	DefaultArtifactsDir = "artifacts"
)

// CanonicalERC1967Factory is the ERC1967Factory deployed at the same
// address on most EVM chains.
var CanonicalERC1967Factory = common.HexToAddress("0x0000000000006396FF2a80c067f99B3d2Ab4Df24")

// Intent describes what the deployer should use: contract names, where to
// find their artifacts and the known addresses per network.
type Intent struct {
	// ContractsVersion is the image tag used when ArtifactsImage is set.
	ContractsVersion ContractsVersion `toml:"contractsVersion"`

	// ArtifactsImage is an optional container image holding compiled
	// artifacts under ArtifactsDir. When empty, ArtifactsDir is read from
	// the local filesystem.
	ArtifactsImage string `toml:"artifactsImage"`
	ArtifactsDir   string `toml:"artifactsDir"`
	// ArtifactsBuildCmd is run in the image before artifacts are read, for
	// images that ship sources only.
	ArtifactsBuildCmd []string `toml:"artifactsBuildCmd"`

	Contracts ContractNames `toml:"contracts"`

	Networks map[string]*Network `toml:"networks"`
}

type ContractNames struct {
	VerifierKeyA      string `toml:"verifierKeyA"`
	VerifierKeyB      string `toml:"verifierKeyB"`
	CompositeVerifier string `toml:"compositeVerifier"`
	Shuffle           string `toml:"shuffle"`
	UpgradeVerifier   string `toml:"upgradeVerifier"`
	ProxyFactory      string `toml:"proxyFactory"`
}

// Network holds the addresses already deployed on one chain. They are only
// consulted by the upgrade and verify workflows.
type Network struct {
	// ChainID is optional. When zero it is read from the RPC endpoint.
	ChainID uint64 `toml:"chainId"`
	RPCURL  string `toml:"rpcUrl"`

	ProxyFactory common.Address `toml:"proxyFactory"`
	ProxyAdmin   common.Address `toml:"proxyAdmin"`

	VerifierKeyA common.Address `toml:"verifierKeyA"`
	VerifierKeyB common.Address `toml:"verifierKeyB"`
	Verifier     common.Address `toml:"verifier"`
	Shuffle      common.Address `toml:"shuffle"`
}

func DefaultIntent() *Intent {
	return &Intent{
		ContractsVersion: "latest",
		ArtifactsDir:     DefaultArtifactsDir,
		Contracts: ContractNames{
			VerifierKeyA:      "VerifierKey_52_1",
			VerifierKeyB:      "VerifierKey_52_2",
			CompositeVerifier: "Shuffle17Verifier",
			Shuffle:           "Shuffle17",
			UpgradeVerifier:   "Shuffle52Verifier",
			ProxyFactory:      "ERC1967Factory",
		},
		Networks: map[string]*Network{
			NetworkBaseSepolia: {
				ChainID:      84532,
				RPCURL:       "https://sepolia.base.org",
				ProxyFactory: CanonicalERC1967Factory,
				VerifierKeyA: common.HexToAddress("0xf55fB7932ca0179ad0a18307AC5cd87bd7A8c61E"),
				VerifierKeyB: common.HexToAddress("0x499094F6Ac3C351EF2d113f2851b7F1b7e761B09"),
				Verifier:     common.HexToAddress("0x1DD1253e7F245a763776a94A886FB3ED1FEed01b"),
				Shuffle:      common.HexToAddress("0x40C2cAc8cD71FB82B2B3b72Ae24d797fE904FcE1"),
			},
			NetworkZytronTestnet: {
				VerifierKeyA: common.HexToAddress("0xDeb08b8247b866ff05856ce4883Dcd23F5E35adA"),
				VerifierKeyB: common.HexToAddress("0x33682F75895E986546A09D60F7ef5Ee6a53383d8"),
				Verifier:     common.HexToAddress("0x17c3Aef40495c2fcC9bc1880AeAAAf455fDfA5bE"),
				Shuffle:      common.HexToAddress("0xbC9b4e9d43830f747e65873A5e122DDd9C9d769b"),
			},
		},
	}
}

func (i *Intent) Check() error {
	if i.ArtifactsImage != "" {
		if err := i.ContractsVersion.Check(); err != nil {
			return err
		}
	}

	if i.ArtifactsDir == "" {
		return fmt.Errorf("artifactsDir must be specified")
	}

	if err := i.Contracts.Check(); err != nil {
		return err
	}

	if len(i.Networks) == 0 {
		return fmt.Errorf("at least one network must be specified")
	}

	for name, n := range i.Networks {
		if n == nil {
			return fmt.Errorf("network %s is empty", name)
		}
	}

	return nil
}

// Network returns the named network. Unknown names are an error, never a
// default.
func (i *Intent) Network(name string) (*Network, error) {
	n, ok := i.Networks[name]
	if !ok || n == nil {
		return nil, fmt.Errorf("unknown network %q, known networks: %v", name, i.NetworkNames())
	}
	return n, nil
}

func (i *Intent) NetworkNames() []string {
	names := make([]string, 0, len(i.Networks))
	for name := range i.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c ContractNames) Check() error {
	fields := []struct {
		name  string
		value string
	}{
		{"verifierKeyA", c.VerifierKeyA},
		{"verifierKeyB", c.VerifierKeyB},
		{"compositeVerifier", c.CompositeVerifier},
		{"shuffle", c.Shuffle},
		{"upgradeVerifier", c.UpgradeVerifier},
		{"proxyFactory", c.ProxyFactory},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("contract name %s must be specified", f.name)
		}
	}
	return nil
}

// Registry seeds a registry with the network's known addresses. Zero
// addresses are skipped so that lookups of them fail instead of returning a
// placeholder.
func (n *Network) Registry() (*Registry, error) {
	reg := NewRegistry()
	known := []struct {
		role Role
		addr common.Address
	}{
		{RoleVerifierKeyA, n.VerifierKeyA},
		{RoleVerifierKeyB, n.VerifierKeyB},
		{RoleCompositeVerifier, n.Verifier},
		{RoleShuffleProxy, n.Shuffle},
		{RoleProxyFactory, n.ProxyFactory},
	}
	for _, k := range known {
		if k.addr == (common.Address{}) {
			continue
		}
		if err := reg.Record(k.role, k.addr); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ArtifactsImageRef is ArtifactsImage tagged with ContractsVersion unless the
// image already carries a tag or digest.
func (i *Intent) ArtifactsImageRef() string {
	if i.ArtifactsImage == "" {
		return ""
	}
	name := i.ArtifactsImage[strings.LastIndex(i.ArtifactsImage, "/")+1:]
	if strings.ContainsAny(name, ":@") || i.ContractsVersion == "" {
		return i.ArtifactsImage
	}
	return i.ArtifactsImage + ":" + string(i.ContractsVersion)
}
