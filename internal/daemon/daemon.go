// Package daemon wires the daemon together: it brings every component up in
// order, runs the main loop and tears everything down again.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/wrtd/internal/brand"
	"grimm.is/wrtd/internal/builtin"
	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/firewall"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/metrics"
	"grimm.is/wrtd/internal/network"
	"grimm.is/wrtd/internal/plugins"
	"grimm.is/wrtd/internal/prefixpool"
	"grimm.is/wrtd/internal/state"
)

const (
	stateDBName     = "state.db"
	resolvConfName  = "resolv.conf"
	metricsShutdown = 5 * time.Second
)

// Daemon is one run of the daemon.
type Daemon struct {
	opts   Options
	logger *logging.Logger
	loop   *loop.Loop
	coord  *ShutdownCoordinator

	hub        *events.Hub
	uuid       uuid.UUID
	global     *config.GlobalConfig
	controller *manager.Controller
	classifier *network.Classifier
	poller     *network.Poller

	table  firewall.Table
	fwOnce sync.Once
	fwErr  error
}

// New prepares a daemon. Nothing touches the host until Run.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	l := loop.New(logger)
	coord := NewShutdownCoordinator(l, logger)
	if opts.Reexec != nil {
		coord.Exec = opts.Reexec
	}
	return &Daemon{
		opts:   opts,
		logger: logger.WithComponent("daemon"),
		loop:   l,
		coord:  coord,
	}
}

// Shutdown returns the daemon's shutdown coordinator.
func (d *Daemon) Shutdown() *ShutdownCoordinator {
	return d.coord
}

// Run starts the daemon, runs the main loop until a stop is requested or
// ctx is done, then tears down. If a restart was requested, Run re-executes
// the process and only returns if that fails.
func (d *Daemon) Run(ctx context.Context) (err error) {
	d.logger.Info("program begins", "version", brand.Version)

	defer func() {
		d.hub.EmitDaemonStopping(d.coord.RestartRequested())
		if terr := d.coord.Teardown(); terr != nil {
			err = errors.Join(err, terr)
		}
		d.logger.Info("program ends")
		if d.coord.RestartRequested() {
			err = errors.Join(err, d.coord.Restart())
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	d.coord.OnTeardown("context", func() error { cancel(); return nil })

	if err := d.start(runCtx); err != nil {
		return err
	}

	if d.opts.HandleSignals {
		stop := d.coord.Watch()
		defer stop()
	}

	d.logger.Info("mainloop begins")
	if err := d.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.logger.Info("mainloop exits")
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	o := d.opts

	// The firewall step goes in before anything can fail, and again once
	// the table is open. It runs once.
	d.coord.OnTeardown("firewall", d.teardownFirewall)

	if err := os.MkdirAll(o.VarDir, 0755); err != nil {
		return fmt.Errorf("failed to create var dir: %w", err)
	}
	if err := mkDirAndClear(o.TmpDir); err != nil {
		return err
	}
	d.coord.OnTeardown("tmp dir", func() error { return os.RemoveAll(o.TmpDir) })
	if err := mkDirAndClear(o.RunDir); err != nil {
		return err
	}

	store, err := state.NewSQLiteStore(state.DefaultOptions(filepath.Join(o.VarDir, stateDBName)))
	if err != nil {
		return err
	}
	d.coord.OnTeardown("state store", store.Close)

	id, generated, err := state.InstanceID(store)
	if err != nil {
		return err
	}
	d.uuid = id
	if generated {
		d.logger.Info("uuid generated", "uuid", id)
	} else {
		d.logger.Info("uuid loaded", "uuid", id)
	}

	pidFile := filepath.Join(o.RunDir, brand.PIDFileName)
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	global, err := config.LoadGlobal(filepath.Join(o.EtcDir, brand.ConfigFileName))
	if err != nil {
		return err
	}
	d.global = global

	links := o.Netlink
	if links == nil {
		nl, err := network.NewNetlinker(global.Netns)
		if err != nil {
			return err
		}
		d.coord.OnTeardown("netlink", nl.Close)
		links = nl
	}

	reg := manager.NewRegistry()
	if err := plugins.Register(reg, plugins.Deps{Netlink: links}); err != nil {
		return err
	}
	if o.Plugins != nil {
		if err := o.Plugins(reg); err != nil {
			return fmt.Errorf("failed to register plugins: %w", err)
		}
	}
	d.logger.Info("plugin registry loaded")

	pool, err := prefixpool.New(store, d.logger)
	if err != nil {
		return err
	}
	d.logger.Info("prefix pool loaded")

	table := o.Firewall
	if table == nil {
		tm, err := firewall.Open(global.Netns, d.logger)
		if err != nil {
			return err
		}
		table = tm
	}
	d.table = table
	d.coord.OnTeardown("firewall", d.teardownFirewall)
	if err := table.Provision(); err != nil {
		return fmt.Errorf("failed to provision firewall table: %w", err)
	}

	if err := os.WriteFile(filepath.Join(o.TmpDir, resolvConfName), nil, 0644); err != nil {
		return fmt.Errorf("failed to create resolv.conf: %w", err)
	}

	hub := events.NewHub()
	d.hub = hub
	caller := manager.NewCaller(hub, d.logger)
	mreg := metrics.New()
	metrics.NewCollector(mreg, hub, d.logger).Start(ctx)
	if global.MetricsListen != "" {
		srv, err := metrics.Listen(global.MetricsListen, mreg, d.logger)
		if err != nil {
			return err
		}
		d.coord.OnTeardown("metrics server", func() error { return srv.Shutdown(metricsShutdown) })
	}
	d.logger.Info("manager caller initialized")

	mctx := &manager.Context{
		EtcDir:     o.EtcDir,
		TmpDir:     o.TmpDir,
		VarDir:     o.VarDir,
		UUID:       id,
		Global:     global,
		Registry:   reg,
		PrefixPool: pool,
		Caller:     caller,
		Firewall:   table,
		Loop:       d.loop,
		Logger:     d.logger,
		Metrics:    mreg,
	}
	set := builtin.New(builtin.Deps{Netlink: links, Sysctl: o.Sysctl})
	d.controller = manager.NewController(mctx, set.Managers(), d.logger)
	d.coord.OnTeardown("managers", d.controller.DisposeAll)
	if err := d.controller.InitBuiltins(); err != nil {
		return err
	}
	if err := d.controller.LoadPlugins(); err != nil {
		return err
	}

	d.classifier = network.NewClassifier(set.WAN, set.LAN, hub, mreg, d.logger)
	d.poller = network.NewPoller(links, d.loop, d.classifier, global.ScanInterval(), mreg, d.logger)
	d.coord.OnTeardown("interface poller", func() error {
		d.poller.Stop()
		return nil
	})
	d.loop.Post(d.poller.Start)
	return nil
}

// teardownFirewall force-deletes the table at most once per run. Before the
// table is open it connects on its own: inside the configured netns if the
// global config got loaded, in the current one otherwise.
func (d *Daemon) teardownFirewall() error {
	d.fwOnce.Do(func() {
		table := d.table
		if table == nil {
			table = d.opts.Firewall
		}
		if table == nil {
			ns := ""
			if d.global != nil {
				ns = d.global.Netns
			}
			tm, err := firewall.Open(ns, d.logger)
			if err != nil {
				d.fwErr = err
				return
			}
			table = tm
		}
		d.fwErr = errors.Join(table.ForceDelete(), table.Close())
	})
	return d.fwErr
}

func mkDirAndClear(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
