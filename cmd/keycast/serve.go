package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/keycast/keycast/internal/emulator"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run a keyboard server emulator",
		Description: "Listens like a network keyboard server, decodes every transfer it " +
			"receives and writes the files to the output directory.",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on",
				Value: "0.0.0.0",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory received files are written to",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Token policy (six or five); overrides the config file",
			},
		},
	}
}

func serve(c *cli.Context) error {
	env, err := setUp(c)
	if err != nil {
		return err
	}

	policy := env.config.Transmit.Policy
	if c.IsSet("policy") {
		policy = c.String("policy")
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "keycast"
	}
	out := c.String("out")

	server := &emulator.Server{
		Logger:        env.logger,
		Policy:        policy,
		Hostname:      hostname,
		PacketLogging: env.config.Debugging.PacketLoggingEnabled,
		OnFile: func(f *emulator.File) {
			path := filepath.Join(out, filepath.Base(f.Name))
			if err := os.WriteFile(path, f.Data, 0644); err != nil {
				env.logger.Errorf("error writing %s: %s", path, err)
			}
		},
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	err = server.ListenAndServe(ctx, c.String("listen"), env.config.Transport.ServerPort)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
