package deployer

import (
	"github.com/urfave/cli/v2"
)

func DeployCLI() func(cliCtx *cli.Context) error {
	return ApplyCLI(func(cliCtx *cli.Context) (Workflow, error) {
		return DeployWorkflow{}, nil
	})
}

func UpgradeCLI() func(cliCtx *cli.Context) error {
	return ApplyCLI(func(cliCtx *cli.Context) (Workflow, error) {
		proxy, err := addressFlag(cliCtx, ProxyFlagName)
		if err != nil {
			return nil, err
		}
		return UpgradeWorkflow{Proxy: proxy}, nil
	})
}

func VerifyCLI() func(cliCtx *cli.Context) error {
	return ApplyCLI(func(cliCtx *cli.Context) (Workflow, error) {
		verifier, err := addressFlag(cliCtx, VerifierFlagName)
		if err != nil {
			return nil, err
		}
		return VerifyWorkflow{
			Verifier:    verifier,
			PublicsPath: cliCtx.String(PublicsFlagName),
			ProofPath:   cliCtx.String(ProofFlagName),
		}, nil
	})
}

// Commands are the deploy, upgrade and verify subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   WorkflowDeploy,
			Usage:  "Deploy both verifier keys, the composite verifier and a shuffle proxy.",
			Flags:  append(append([]cli.Flag{}, GlobalFlags...), DeployFlags...),
			Action: DeployCLI(),
		},
		{
			Name:   WorkflowUpgrade,
			Usage:  "Deploy a new verifier and point an existing shuffle proxy at it.",
			Flags:  append(append([]cli.Flag{}, GlobalFlags...), UpgradeFlags...),
			Action: UpgradeCLI(),
		},
		{
			Name:   WorkflowVerify,
			Usage:  "Check the stored test proof against a deployed verifier.",
			Flags:  append(append([]cli.Flag{}, GlobalFlags...), VerifyFlags...),
			Action: VerifyCLI(),
		},
	}
}
