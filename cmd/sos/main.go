// sos boots a simulated operating system atop a simulated CPU and RAM.
package main

import (
	"context"
	"os"

	"github.com/moynes-sim/elsos/internal/cli"
	"github.com/moynes-sim/elsos/internal/cli/cmd"
	"github.com/moynes-sim/elsos/internal/log"
)

func main() {
	logger := log.NewFormattedLogger(os.Stderr)
	log.SetDefault(logger)

	commands := []cli.Command{
		cmd.Run(),
	}

	runner := cli.New(context.Background()).
		WithCommands(commands).
		WithHelp(cmd.Help(commands)).
		WithLogger(os.Stderr)

	os.Exit(runner.Execute(os.Args[1:]))
}
