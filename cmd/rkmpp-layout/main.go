// Package main is the rkmpp-layout command.
package main

import (
	"os"

	"go.viam.com/rkmpp/cli"
	"go.viam.com/rkmpp/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("rkmpp-layout").Error(err)
		os.Exit(1)
	}
}
