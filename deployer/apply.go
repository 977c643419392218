package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"

	"github.com/ace-quest/ace-pozk/deployer/artifacts"
	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/pipeline"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

var ErrSignerMismatch = errors.New("public address does not match private key")

type ApplyConfig struct {
	// RPCURL overrides the network's rpcUrl.
	RPCURL     string
	Network    string
	Workdir    string
	ReportFile string

	PrivateKey string
	// PublicAddress, when set, must be the address of PrivateKey.
	PublicAddress common.Address

	GasFeeCap *big.Int
	GasTipCap *big.Int

	ProxyAdmin     common.Address
	ArtifactsDir   string
	ArtifactsImage string

	Workflow Workflow
	Logger   log.Logger

	privateKeyECDSA *ecdsa.PrivateKey
}

func (a *ApplyConfig) Check() error {
	if a.Network == "" {
		return fmt.Errorf("network must be specified")
	}

	if a.Workdir == "" {
		return fmt.Errorf("workdir must be specified")
	}

	if a.PrivateKey == "" {
		return fmt.Errorf("private key must be specified")
	}

	pk, err := crypto.HexToECDSA(strings.TrimPrefix(a.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	a.privateKeyECDSA = pk

	if a.PublicAddress != (common.Address{}) {
		if derived := crypto.PubkeyToAddress(pk.PublicKey); derived != a.PublicAddress {
			return fmt.Errorf("%w: key is for %s, expected %s", ErrSignerMismatch, derived.Hex(), a.PublicAddress.Hex())
		}
	}

	if a.Workflow == nil {
		return fmt.Errorf("workflow must be specified")
	}

	if a.Logger == nil {
		return fmt.Errorf("logger must be specified")
	}

	return nil
}

// ApplyCLI runs the workflow built by newWorkflow from the subcommand's
// flags. An interrupt cancels the run; the report of what completed is still
// written.
func ApplyCLI(newWorkflow func(cliCtx *cli.Context) (Workflow, error)) func(cliCtx *cli.Context) error {
	return func(cliCtx *cli.Context) error {
		logCfg, err := ReadLogConfig(cliCtx)
		if err != nil {
			return err
		}
		l := NewLogger(cliCtx.App.ErrWriter, logCfg)
		log.SetDefault(l)

		cfg, err := readApplyConfig(cliCtx, l)
		if err != nil {
			return err
		}
		if cfg.Workflow, err = newWorkflow(cliCtx); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cliCtx.Context)
		defer cancel()
		if timeout := cliCtx.Duration(TimeoutFlagName); timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		errCh := make(chan error, 1)
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		go func() {
			errCh <- Apply(ctx, cfg)
		}()

		select {
		case err := <-errCh:
			cancel()
			return err
		case <-sigs:
			l.Warn("interrupted, cancelling run")
			cancel()
			return <-errCh
		}
	}
}

func readApplyConfig(cliCtx *cli.Context, l log.Logger) (ApplyConfig, error) {
	cfg := ApplyConfig{
		RPCURL:         cliCtx.String(RPCURLFlagName),
		Network:        cliCtx.String(NetworkFlagName),
		Workdir:        cliCtx.String(WorkdirFlagName),
		ReportFile:     cliCtx.String(ReportFileFlagName),
		PrivateKey:     cliCtx.String(PrivateKeyFlagName),
		GasFeeCap:      gwei(cliCtx.Uint64(GasFeeCapFlagName)),
		GasTipCap:      gwei(cliCtx.Uint64(GasTipCapFlagName)),
		ArtifactsDir:   cliCtx.String(ArtifactsDirFlagName),
		ArtifactsImage: cliCtx.String(ArtifactsImageFlagName),
		Logger:         l,
	}

	var err error
	if cfg.PublicAddress, err = addressFlag(cliCtx, PublicAddressFlagName); err != nil {
		return ApplyConfig{}, err
	}
	if cfg.ProxyAdmin, err = addressFlag(cliCtx, ProxyAdminFlagName); err != nil {
		return ApplyConfig{}, err
	}
	return cfg, nil
}

// addressFlag parses an optional address flag. Unset is the zero address.
func addressFlag(cliCtx *cli.Context, name string) (common.Address, error) {
	value := cliCtx.String(name)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("--%s: %q is not an address", name, value)
	}
	return common.HexToAddress(value), nil
}

func gwei(v uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(v), big.NewInt(params.GWei))
}

func Apply(ctx context.Context, cfg ApplyConfig) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config for apply: %w", err)
	}

	lgr := cfg.Logger.New("workflow", cfg.Workflow.Name(), "network", cfg.Network)
	env := &pipeline.Env{
		Workdir:    cfg.Workdir,
		ReportFile: cfg.ReportFile,
		Logger:     lgr,
	}

	intent, err := env.ReadIntent()
	if err != nil {
		return err
	}
	if cfg.ArtifactsDir != "" {
		intent.ArtifactsDir = cfg.ArtifactsDir
	}
	if cfg.ArtifactsImage != "" {
		intent.ArtifactsImage = cfg.ArtifactsImage
	}
	if err := intent.Check(); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}

	network, err := intent.Network(cfg.Network)
	if err != nil {
		return err
	}

	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = network.RPCURL
	}
	if rpcURL == "" {
		return fmt.Errorf("no rpc url given and network %s has none configured", cfg.Network)
	}

	var chainID *big.Int
	if network.ChainID != 0 {
		chainID = new(big.Int).SetUint64(network.ChainID)
	}
	deployer, err := chain.NewDeployer(ctx, chain.Config{
		RPCURL:     rpcURL,
		ChainID:    chainID,
		PrivateKey: cfg.privateKeyECDSA,
		GasFeeCap:  cfg.GasFeeCap,
		GasTipCap:  cfg.GasTipCap,
		Logger:     lgr,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to chain: %w", err)
	}
	defer deployer.Close()

	source, closeSource := artifactSource(intent, lgr)
	defer func() {
		if err := closeSource.Close(); err != nil {
			lgr.Warn("failed to clean up artifacts source", "err", err)
		}
	}()

	registry, err := cfg.Workflow.registry(network)
	if err != nil {
		return err
	}

	proxyAdmin := cfg.ProxyAdmin
	if proxyAdmin == (common.Address{}) {
		proxyAdmin = network.ProxyAdmin
	}

	env.Network = network
	env.Chain = deployer
	env.Artifacts = source
	env.Registry = registry
	env.ProxyAdmin = proxyAdmin

	lgr.Info("starting run", "deployer", deployer.Address(), "rpc", rpcURL)
	return run(ctx, env, intent, cfg.Network, cfg.Workflow)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func artifactSource(intent *state.Intent, lgr log.Logger) (artifacts.Source, io.Closer) {
	if ref := intent.ArtifactsImageRef(); ref != "" {
		src := artifacts.NewDockerSource(artifacts.DockerSourceOpts{
			Image:    ref,
			Dir:      intent.ArtifactsDir,
			BuildCmd: intent.ArtifactsBuildCmd,
			Logger:   lgr,
		})
		return src, src
	}
	return artifacts.NewDirSource(intent.ArtifactsDir), nopCloser{}
}

// run executes the workflow's stages in order and writes the run report,
// including when a stage fails.
func run(ctx context.Context, env *pipeline.Env, intent *state.Intent, network string, wf Workflow) error {
	st := state.NewState(network, wf.Name(), env.Chain.Address())

	var err error
	for _, stage := range wf.stages() {
		if err = stage.stage(ctx, env, intent, st); err != nil {
			err = fmt.Errorf("error in pipeline stage %s: %w", stage.name, err)
			break
		}
	}
	if err != nil {
		st.Error = err.Error()
	}

	if werr := env.WriteState(st); werr != nil {
		if err == nil {
			return werr
		}
		env.Logger.Error("failed to write run report", "err", werr)
	}
	return err
}
