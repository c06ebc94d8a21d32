package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/keycast/keycast/internal/core/data"
	"github.com/keycast/keycast/internal/device"
)

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:        "devices",
		Usage:       "list keyboard devices",
		Description: "Lists the serial ports on this machine and the keyboard servers answering a broadcast.",
		Action:      devices,
	}
}

func devices(c *cli.Context) error {
	env, err := setUp(c)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	m := env.newManager()
	if err := m.Find(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tADDRESS")
	for _, d := range m.Devices() {
		kind := "serial"
		if d.Kind == device.Server {
			kind = "server"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, kind, d.Address)
	}
	return w.Flush()
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "list recent file sends",
		Action: history,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
			},
		},
	}
}

func history(c *cli.Context) error {
	env, err := setUp(c)
	if err != nil {
		return err
	}
	defer env.close()

	db := env.openHistory()
	if db == nil {
		return cli.Exit("transfer history is not available", 1)
	}
	records, err := data.FindRecentTransfers(db, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSENT\tSIZE\tDEVICE\tSTARTED")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			r.ID, r.Name, statusWord(string(r.Status)), r.SentBytes, r.CompressedSize,
			r.ActualSize, r.Device, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

var titleCaser = cases.Title(language.English)

func statusWord(s string) string {
	return titleCaser.String(s)
}
