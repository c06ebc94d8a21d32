package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/core/lz"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/sender"
	"github.com/keycast/keycast/internal/transfer"
)

func compressCommand() *cli.Command {
	return &cli.Command{
		Name:        "compress",
		Usage:       "compress a file without sending it",
		ArgsUsage:   "IN OUT",
		Description: "Writes the compressed stream of IN to OUT and prints the size needed to decompress it.",
		Action:      compress,
	}
}

func compress(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("compress expects IN and OUT arguments", 2)
	}
	src, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	start := time.Now()
	dst, err := lz.Compress(ctx, src, &lz.Options{Progress: compressionProgress()})
	fmt.Println()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Args().Get(1), dst, 0644); err != nil {
		return err
	}

	fmt.Printf("%d -> %d bytes in %s\n", len(src), len(dst), time.Since(start).Round(time.Millisecond))
	return nil
}

func decompressCommand() *cli.Command {
	return &cli.Command{
		Name:      "decompress",
		Usage:     "decompress a stream written by compress",
		ArgsUsage: "IN OUT",
		Action:    decompress,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "size",
				Usage:    "Size of the original file",
				Required: true,
			},
		},
	}
}

func decompress(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("decompress expects IN and OUT arguments", 2)
	}
	src, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	dst, err := lz.Decompress(src, c.Int("size"))
	if err != nil {
		return err
	}
	return os.WriteFile(c.Args().Get(1), dst, 0644)
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "show what sending a file would type",
		ArgsUsage: "FILE",
		Description: "Prepares FILE like send does and prints the header, the chunk layout " +
			"and optionally the first key reports without opening a device.",
		Action: inspect,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Type tag announced in the header",
				Value: transfer.DefaultType,
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Token policy (six or five); overrides the config file",
			},
			&cli.IntFlag{
				Name:  "reports",
				Usage: "Number of key reports to dump",
			},
		},
	}
}

func inspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect expects exactly one FILE argument", 2)
	}

	env, err := setUp(c)
	if err != nil {
		return err
	}
	policy := env.config.Transmit.Policy
	if c.IsSet("policy") {
		policy = c.String("policy")
	}
	codec, err := token.New(policy)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	xfer, err := transfer.PrepareFile(ctx, c.Args().First(), &transfer.Options{Type: c.String("type")})
	if err != nil {
		return err
	}

	records, err := lz.Records(xfer.Payload, xfer.ActualSize)
	if err != nil {
		return fmt.Errorf("compressed stream does not decode: %w", err)
	}
	var matches, matched int
	for _, r := range records {
		if r.Match {
			matches++
			matched += r.Length
		}
	}

	chunks := (xfer.CompressedSize() + codec.ChunkBytes() - 1) / codec.ChunkBytes()
	reportsPerChunk := codec.ChunkBytes()*8/codec.Bits()/token.SymbolsPerReport + 1
	fmt.Printf("header:     %q\n", xfer.HeaderLines())
	fmt.Printf("checksum:   %s\n", xfer.ChecksumString())
	fmt.Printf("records:    %d (%d matches covering %d of %d bytes)\n", len(records), matches, matched, xfer.ActualSize)
	fmt.Printf("policy:     %s (%d bytes per chunk)\n", codec.Name(), codec.ChunkBytes())
	fmt.Printf("chunks:     %d (%d stream reports)\n", chunks, chunks*reportsPerChunk)

	n := c.Int("reports")
	if n <= 0 {
		return nil
	}
	fmt.Println()

	// The dump stops the send once enough reports have been printed.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts, err := sender.OptionsFromConfig(env.config)
	if err != nil {
		return err
	}
	opts.Scheduler = noDelay{}
	opts.PacketLogging = false

	dump := &dumpTransport{w: os.Stdout, remaining: 2 * n, done: cancel}
	s := sender.New(dump, codec, opts, env.logger)
	if _, err := s.SendFile(ctx, xfer, nil); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// dumpTransport prints every pressed report instead of sending it.
type dumpTransport struct {
	w         io.Writer
	count     int
	remaining int
	done      func()
}

func (d *dumpTransport) Write(p []byte) (int, error) {
	if d.remaining <= 0 {
		return 0, context.Canceled
	}
	d.remaining--
	if d.count%2 == 0 {
		fmt.Fprintln(d.w, "#"+strconv.Itoa(d.count/2))
		debug.PrintPacket(d.w, p)
	}
	d.count++
	if d.remaining == 0 {
		d.done()
	}
	return len(p), nil
}

func (d *dumpTransport) SendEnabled() bool { return true }
func (d *dumpTransport) Close() error      { return nil }
func (d *dumpTransport) Name() string      { return "dump" }

type noDelay struct{}

func (noDelay) Sleep(ctx context.Context, _ time.Duration) error { return nil }
func (noDelay) WaitUntil(ctx context.Context, ready func() bool, _ time.Duration) error {
	return nil
}
