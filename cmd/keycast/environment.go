package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/keycast/keycast/internal/core"
	"github.com/keycast/keycast/internal/core/data"
	"github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/device"
	"github.com/keycast/keycast/internal/transport"
)

// environment holds the resources shared by the commands.
type environment struct {
	config *core.Config
	logger *logrus.Logger
	db     *gorm.DB
}

func setUp(c *cli.Context) (*environment, error) {
	config, err := core.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := core.NewLogger(config)
	if err != nil {
		return nil, err
	}
	if config.Debugging.Enabled {
		debug.StartPprofServer(logger, config.Debugging.PprofPort)
	}
	return &environment{config: config, logger: logger}, nil
}

// openHistory connects to the transfer history database. History is optional,
// so failures are logged and the returned handle is nil.
func (env *environment) openHistory() *gorm.DB {
	if env.db != nil {
		return env.db
	}
	source := env.config.Database.Filename
	if env.config.Database.Engine == data.EnginePostgres {
		source = env.config.DatabaseURL()
	}

	db, err := data.Open(env.config.Database.Engine, source, env.config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		env.logger.Warnf("transfer history disabled: %s", err)
		return nil
	}
	env.db = db
	return db
}

func (env *environment) close() {
	if env.db != nil {
		if err := data.Shutdown(env.db); err != nil {
			env.logger.Warn(err)
		}
	}
}

// interruptContext is cancelled on SIGINT or SIGTERM so that a send can stop
// between chunks.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (env *environment) newManager() *device.Manager {
	return device.NewManager(env.config, env.logger, func(e device.Event) {
		env.logger.WithField("device", e.Name).Infof("device %s", e.Kind)
	})
}

// openDevice opens the device named on the command line, then the configured
// serial port or server, and otherwise the last device found by discovery.
func (env *environment) openDevice(ctx context.Context, m *device.Manager, name, server string) (transport.Transport, error) {
	if name == "" {
		name = env.config.Transport.SerialPort
	}
	if server == "" {
		server = env.config.Transport.ServerHost
	}

	switch {
	case name != "":
		m.AddDevice(device.Device{Name: name, Address: name, Kind: device.Serial})
		return m.Open(ctx, name)
	case server != "":
		m.AddDevice(device.Device{Name: server, Address: server, Kind: device.Server})
		return m.Open(ctx, server)
	}

	if err := m.Find(ctx); err != nil {
		return nil, fmt.Errorf("error finding devices: %w", err)
	}
	return m.OpenLatest(ctx)
}
