package network

import (
	"errors"
	"strings"

	"github.com/vishvananda/netlink"
)

// ErrNotSupported is returned by the netlink backend on non-Linux builds.
var ErrNotSupported = errors.New("netlink not supported on this platform")

// PhysicalPrefixes are the interface name prefixes the poller watches.
var PhysicalPrefixes = []string{"en", "eth", "wl"}

// IsPhysical reports whether name carries one of PhysicalPrefixes.
func IsPhysical(name string) bool {
	for _, p := range PhysicalPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// LinkLister enumerates the host's links.
type LinkLister interface {
	LinkList() ([]netlink.Link, error)
}

// Netlinker is an interface that abstracts netlink interactions.
// This allows for mocking netlink calls during unit testing.
type Netlinker interface {
	LinkLister
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetMaster(link, master netlink.Link) error
	LinkSetNoMaster(link netlink.Link) error

	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrReplace(link netlink.Link, addr *netlink.Addr) error
}

// SystemController is an interface that abstracts sysctl access.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
	IsNotExist(err error) bool
}
