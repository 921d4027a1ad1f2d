package daemon

import (
	"grimm.is/wrtd/internal/brand"
	"grimm.is/wrtd/internal/firewall"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

// Options configure a daemon run.
type Options struct {
	EtcDir string
	VarDir string
	TmpDir string
	RunDir string

	Logger *logging.Logger

	// Netlink, Firewall and Sysctl replace the host backends. When nil the
	// daemon opens its own inside the configured netns.
	Netlink  network.Netlinker
	Firewall firewall.Table
	Sysctl   network.SystemController

	// Plugins registers plugins beyond the stock set.
	Plugins func(reg *manager.Registry) error

	// HandleSignals installs the SIGINT/SIGTERM/SIGHUP handlers.
	HandleSignals bool

	// Reexec replaces Reexec for restarts.
	Reexec func() error
}

// DefaultOptions returns options using the branded directories.
func DefaultOptions() Options {
	return Options{
		EtcDir:        brand.GetConfigDir(),
		VarDir:        brand.GetStateDir(),
		TmpDir:        brand.GetTmpDir(),
		RunDir:        brand.GetRunDir(),
		HandleSignals: true,
	}
}
