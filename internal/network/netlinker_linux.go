//go:build linux

package network

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// RealNetlinker is the Netlinker backed by a netlink handle.
type RealNetlinker struct {
	h  *netlink.Handle
	ns netns.NsHandle
}

// NewNetlinker opens a netlink handle. A non-empty nsName binds the handle
// to that named network namespace.
func NewNetlinker(nsName string) (*RealNetlinker, error) {
	if nsName == "" {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, fmt.Errorf("failed to open netlink handle: %w", err)
		}
		return &RealNetlinker{h: h, ns: netns.None()}, nil
	}

	ns, err := netns.GetFromName(nsName)
	if err != nil {
		return nil, fmt.Errorf("failed to open netns %s: %w", nsName, err)
	}
	h, err := netlink.NewHandleAt(ns)
	if err != nil {
		ns.Close()
		return nil, fmt.Errorf("failed to open netlink handle in netns %s: %w", nsName, err)
	}
	return &RealNetlinker{h: h, ns: ns}, nil
}

// LinkList retrieves all links.
func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return r.h.LinkList()
}

// LinkByName retrieves a link by name.
func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return r.h.LinkByName(name)
}

func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return r.h.LinkAdd(link)
}

func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return r.h.LinkDel(link)
}

func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return r.h.LinkSetUp(link)
}

func (r *RealNetlinker) LinkSetMaster(link, master netlink.Link) error {
	return r.h.LinkSetMaster(link, master)
}

func (r *RealNetlinker) LinkSetNoMaster(link netlink.Link) error {
	return r.h.LinkSetNoMaster(link)
}

// AddrList lists addresses of a link, or of every link when link is nil.
func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return r.h.AddrList(link, family)
}

func (r *RealNetlinker) AddrReplace(link netlink.Link, addr *netlink.Addr) error {
	return r.h.AddrReplace(link, addr)
}

// Close releases the handle and the namespace.
func (r *RealNetlinker) Close() error {
	r.h.Close()
	if r.ns.IsOpen() {
		return r.ns.Close()
	}
	return nil
}
