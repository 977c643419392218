package deployer

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ace-quest/ace-pozk/deployer/pipeline"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

const EnvVarPrefix = "SHUFFLE_DEPLOYER"

const (
	RPCURLFlagName         = "rpc-url"
	NetworkFlagName        = "network"
	WorkdirFlagName        = "workdir"
	ReportFileFlagName     = "report-file"
	PrivateKeyFlagName     = "private-key"
	PublicAddressFlagName  = "public-address"
	GasFeeCapFlagName      = "gas-fee-cap"
	GasTipCapFlagName      = "gas-tip-cap"
	TimeoutFlagName        = "timeout"
	ProxyAdminFlagName     = "proxy-admin"
	ArtifactsDirFlagName   = "artifacts-dir"
	ArtifactsImageFlagName = "artifacts-image"
	ProxyFlagName          = "proxy"
	VerifierFlagName       = "verifier"
	PublicsFlagName        = "publics"
	ProofFlagName          = "proof"

	LogLevelFlagName  = "log.level"
	LogFormatFlagName = "log.format"
	LogColorFlagName  = "log.color"
)

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	RPCURLFlag = &cli.StringFlag{
		Name:    RPCURLFlagName,
		Usage:   "JSON-RPC endpoint. Defaults to the selected network's rpcUrl.",
		EnvVars: prefixEnvVar("RPC_URL"),
	}
	NetworkFlag = &cli.StringFlag{
		Name:    NetworkFlagName,
		Usage:   "Network to operate on, as named in the intent file.",
		EnvVars: prefixEnvVar("NETWORK"),
		Value:   state.NetworkBaseSepolia,
	}
	WorkdirFlag = &cli.StringFlag{
		Name:    WorkdirFlagName,
		Usage:   "Directory holding intent.toml. The run report is written here.",
		EnvVars: prefixEnvVar("WORKDIR"),
		Value:   ".",
	}
	ReportFileFlag = &cli.StringFlag{
		Name:    ReportFileFlagName,
		Usage:   "Run report file name inside the workdir. A .toml name writes TOML.",
		EnvVars: prefixEnvVar("REPORT_FILE"),
		Value:   pipeline.StateFile,
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:    PrivateKeyFlagName,
		Usage:   "Hex private key of the deployer account.",
		EnvVars: prefixEnvVar("PRIVATE_KEY"),
	}
	PublicAddressFlag = &cli.StringFlag{
		Name:    PublicAddressFlagName,
		Usage:   "Expected deployer address. Checked against the private key when set.",
		EnvVars: prefixEnvVar("PUBLIC_ADDRESS"),
	}
	GasFeeCapFlag = &cli.Uint64Flag{
		Name:    GasFeeCapFlagName,
		Usage:   "Max fee per gas, in gwei.",
		EnvVars: prefixEnvVar("GAS_FEE_CAP"),
		Value:   10,
	}
	GasTipCapFlag = &cli.Uint64Flag{
		Name:    GasTipCapFlagName,
		Usage:   "Max priority fee per gas, in gwei.",
		EnvVars: prefixEnvVar("GAS_TIP_CAP"),
		Value:   1,
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:    TimeoutFlagName,
		Usage:   "Upper bound for the whole run. Zero waits forever.",
		EnvVars: prefixEnvVar("TIMEOUT"),
		Value:   10 * time.Minute,
	}
	ProxyAdminFlag = &cli.StringFlag{
		Name:    ProxyAdminFlagName,
		Usage:   "Admin of created proxies. Defaults to the network's proxyAdmin, then the deployer.",
		EnvVars: prefixEnvVar("PROXY_ADMIN"),
	}
	ArtifactsDirFlag = &cli.StringFlag{
		Name:    ArtifactsDirFlagName,
		Usage:   "Compiled artifacts directory. Overrides the intent file.",
		EnvVars: prefixEnvVar("ARTIFACTS_DIR"),
	}
	ArtifactsImageFlag = &cli.StringFlag{
		Name:    ArtifactsImageFlagName,
		Usage:   "Contracts image to read artifacts from. Overrides the intent file.",
		EnvVars: prefixEnvVar("ARTIFACTS_IMAGE"),
	}
	ProxyFlag = &cli.StringFlag{
		Name:    ProxyFlagName,
		Usage:   "Shuffle proxy to upgrade. Defaults to the network's shuffle.",
		EnvVars: prefixEnvVar("PROXY"),
	}
	VerifierFlag = &cli.StringFlag{
		Name:    VerifierFlagName,
		Usage:   "Verifier to check the proof against. Defaults to the network's verifier.",
		EnvVars: prefixEnvVar("VERIFIER"),
	}
	PublicsFlag = &cli.StringFlag{
		Name:    PublicsFlagName,
		Usage:   "Public inputs file.",
		EnvVars: prefixEnvVar("PUBLICS"),
		Value:   pipeline.DefaultPublicsPath,
	}
	ProofFlag = &cli.StringFlag{
		Name:    ProofFlagName,
		Usage:   "Proof file.",
		EnvVars: prefixEnvVar("PROOF"),
		Value:   pipeline.DefaultProofPath,
	}

	LogLevelFlag = &cli.StringFlag{
		Name:    LogLevelFlagName,
		Usage:   "Lowest log level to print: trace, debug, info, warn, error, crit.",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Value:   "info",
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    LogFormatFlagName,
		Usage:   "Log format: terminal, logfmt or json.",
		EnvVars: prefixEnvVar("LOG_FORMAT"),
		Value:   LogFormatTerminal,
	}
	LogColorFlag = &cli.BoolFlag{
		Name:    LogColorFlagName,
		Usage:   "Color terminal logs.",
		EnvVars: prefixEnvVar("LOG_COLOR"),
	}
)

// GlobalFlags are shared by every subcommand.
var GlobalFlags = []cli.Flag{
	RPCURLFlag,
	NetworkFlag,
	WorkdirFlag,
	ReportFileFlag,
	PrivateKeyFlag,
	PublicAddressFlag,
	GasFeeCapFlag,
	GasTipCapFlag,
	TimeoutFlag,
	ProxyAdminFlag,
	ArtifactsDirFlag,
	ArtifactsImageFlag,
	LogLevelFlag,
	LogFormatFlag,
	LogColorFlag,
}

var (
	DeployFlags  []cli.Flag
	UpgradeFlags = []cli.Flag{ProxyFlag}
	VerifyFlags  = []cli.Flag{VerifierFlag, PublicsFlag, ProofFlag}
)
