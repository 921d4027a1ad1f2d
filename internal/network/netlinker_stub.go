//go:build !linux

package network

import (
	"github.com/vishvananda/netlink"
)

// RealNetlinker is a stub implementation of Netlinker.
type RealNetlinker struct{}

// NewNetlinker always fails on this platform.
func NewNetlinker(nsName string) (*RealNetlinker, error) {
	return nil, ErrNotSupported
}

func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return nil, ErrNotSupported
}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return nil, ErrNotSupported
}

func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return ErrNotSupported
}

func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return ErrNotSupported
}

func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return ErrNotSupported
}

func (r *RealNetlinker) LinkSetMaster(link, master netlink.Link) error {
	return ErrNotSupported
}

func (r *RealNetlinker) LinkSetNoMaster(link netlink.Link) error {
	return ErrNotSupported
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, ErrNotSupported
}

func (r *RealNetlinker) AddrReplace(link netlink.Link, addr *netlink.Addr) error {
	return ErrNotSupported
}

func (r *RealNetlinker) Close() error {
	return nil
}
