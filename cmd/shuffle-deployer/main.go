package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ace-quest/ace-pozk/deployer"
)

var Version = "v0.0.0"

func main() {
	app := cli.NewApp()
	app.Name = "shuffle-deployer"
	app.Usage = "Deploys, upgrades and checks the verifiable shuffle contracts."
	app.Version = Version
	app.Commands = deployer.Commands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
