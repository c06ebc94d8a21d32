package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/keycast/keycast/internal/core/data"
	"github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/core/keycode"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/device"
	"github.com/keycast/keycast/internal/sender"
	"github.com/keycast/keycast/internal/transfer"
)

var deviceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "Serial port of the keyboard device",
	},
	&cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Host of a network keyboard server",
	},
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send a file",
		ArgsUsage: "FILE",
		Description: "Compresses FILE and types it into the receiving application " +
			"as a header, the encoded payload and a terminator.",
		Action: send,
		Flags: append([]cli.Flag{
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
				Name:  "attempts",
				Usage: "Number of times the send is tried when the device fails",
				Value: 1,
			},
		}, deviceFlags...),
	}
}

func send(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("send expects exactly one FILE argument", 2)
	}
	path := c.Args().First()

	env, err := setUp(c)
	if err != nil {
		return err
	}
	defer env.close()

	policy := env.config.Transmit.Policy
	if c.IsSet("policy") {
		policy = c.String("policy")
	}
	opts, err := sender.OptionsFromConfig(env.config)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	cache := transfer.NewCache(env.config.Cache.TTL, env.config.Cache.CleanupInterval)
	manager := env.newManager()
	defer manager.Close()

	attempts := c.Int("attempts")
	for attempt := 1; ; attempt++ {
		err = sendFile(ctx, env, manager, c, path, policy, opts, cache)
		if err == nil || attempt >= attempts || errors.Is(err, context.Canceled) {
			return err
		}
		env.logger.WithError(err).Warnf("send failed, retrying (%d/%d)", attempt+1, attempts)
	}
}

func sendFile(ctx context.Context, env *environment, manager *device.Manager, c *cli.Context,
	path, policy string, opts *sender.Options, cache *transfer.Cache) error {
	codec, err := token.New(policy)
	if err != nil {
		return err
	}

	xfer, err := transfer.PrepareFile(ctx, path, &transfer.Options{
		Type:     c.String("type"),
		Cache:    cache,
		Progress: compressionProgress(),
	})
	fmt.Println()
	if err != nil {
		return err
	}
	env.logger.Debugf("prepared transfer\n%s", debug.Dump(xfer))

	t, err := env.openDevice(ctx, manager, c.String("device"), c.String("server"))
	if err != nil {
		return err
	}

	db := env.openHistory()
	record := &data.TransferRecord{
		Name:           xfer.Name,
		Type:           xfer.Type,
		Device:         t.Name(),
		Policy:         codec.Name(),
		Checksum:       xfer.ChecksumString(),
		ActualSize:     xfer.ActualSize,
		CompressedSize: xfer.CompressedSize(),
		Status:         data.TransferSending,
	}
	saveRecord(env.logger, db, record, true)

	s := sender.New(t, codec, opts, env.logger)
	sent, err := s.SendFile(ctx, xfer, func(p sender.Progress) {
		if p.Total > 0 {
			fmt.Printf("\r%s: %d/%d bytes (%d%%)", statusWord(p.State.String()), p.Sent, p.Total, p.Sent*100/p.Total)
		}
	})
	fmt.Println()

	now := time.Now()
	record.SentBytes = sent
	record.FinishedAt = &now
	switch {
	case err == nil:
		record.Status = data.TransferFinished
	case errors.Is(err, context.Canceled):
		record.Status = data.TransferCancelled
	default:
		record.Status = data.TransferFailed
		record.Error = err.Error()
	}
	saveRecord(env.logger, db, record, false)

	if err == nil {
		fmt.Printf("sent %s (%d bytes, %d compressed)\n", xfer.Name, xfer.ActualSize, xfer.CompressedSize())
	}
	return err
}

func compressionProgress() func(done, total int) {
	last := -1
	return func(done, total int) {
		if pct := done * 100 / total; pct != last {
			last = pct
			fmt.Printf("\rcompressing: %d%%", pct)
		}
	}
}

func saveRecord(logger *logrus.Logger, db *gorm.DB, record *data.TransferRecord, create bool) {
	if db == nil {
		return
	}
	var err error
	if create {
		err = data.CreateTransfer(db, record)
	} else {
		err = data.UpdateTransfer(db, record)
	}
	if err != nil {
		logger.Warnf("error saving transfer history: %s", err)
	}
}

func typeCommand() *cli.Command {
	return &cli.Command{
		Name:      "type",
		Usage:     "type text",
		ArgsUsage: "TEXT",
		Description: "Types TEXT key by key. With --unicode the text is entered " +
			"through the receiver's code point input instead, which also covers kanji.",
		Action: typeText,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "unicode",
				Aliases: []string{"u"},
				Usage:   "Enter the text as UTF-16 code points",
			},
			&cli.BoolFlag{
				Name:  "enter",
				Usage: "Press Enter after the text",
			},
		}, deviceFlags...),
	}
}

func typeText(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("type expects exactly one TEXT argument", 2)
	}

	env, err := setUp(c)
	if err != nil {
		return err
	}
	defer env.close()

	opts, err := sender.OptionsFromConfig(env.config)
	if err != nil {
		return err
	}
	codec, err := token.New(env.config.Transmit.Policy)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	manager := env.newManager()
	defer manager.Close()
	t, err := env.openDevice(ctx, manager, c.String("device"), c.String("server"))
	if err != nil {
		return err
	}

	s := sender.New(t, codec, opts, env.logger)
	if c.Bool("unicode") {
		err = s.SendUnicode(ctx, c.Args().First())
	} else {
		err = s.SendText(ctx, c.Args().First())
	}
	if err != nil {
		return err
	}
	if c.Bool("enter") {
		return s.SendKey(ctx, 0, keycode.KeyEnter)
	}
	return nil
}
