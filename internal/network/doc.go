// Package network watches the host's physical interfaces and assigns each
// one to the manager that owns it.
//
// # Overview
//
// The [Poller] enumerates links on a fixed period through a [LinkLister],
// keeps the physical ones (names starting with en, eth or wl) and hands the
// difference against the tracked set to the [Classifier]. The classifier
// offers new interfaces to the WAN connection plugin first, then to each LAN
// interface plugin in order, and records [Unmanaged] when nobody claims one.
//
// # Netlink
//
// [RealNetlinker] talks to the kernel through a vishvananda/netlink handle,
// optionally bound to a named network namespace. [MockNetlinker] is the
// testify mock used by tests.
//
// All Poller and Classifier methods run on the daemon loop.
package network
