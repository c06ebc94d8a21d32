// keycast types files into machines that only accept keyboard input. Files
// are compressed, encoded as keystrokes and sent to a USB keyboard emulator
// over a serial link or through a network keyboard server.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "keycast error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	app := cli.NewApp()
	app.Name = "keycast"
	app.Usage = "send files as keystrokes"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the directory containing the config file",
			EnvVars: []string{"KEYCAST_CONFIG"},
			Value:   "./",
		},
	}
	app.Commands = []*cli.Command{
		sendCommand(),
		typeCommand(),
		compressCommand(),
		decompressCommand(),
		inspectCommand(),
		devicesCommand(),
		historyCommand(),
		serveCommand(),
	}
	return app
}
