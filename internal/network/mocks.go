package network

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Link), args.Error(1)
}
func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}
func (m *MockNetlinker) LinkAdd(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}
func (m *MockNetlinker) LinkDel(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}
func (m *MockNetlinker) LinkSetUp(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}
func (m *MockNetlinker) LinkSetMaster(link, master netlink.Link) error {
	args := m.Called(link, master)
	return args.Error(0)
}
func (m *MockNetlinker) LinkSetNoMaster(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}
func (m *MockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Addr), args.Error(1)
}
func (m *MockNetlinker) AddrReplace(link netlink.Link, addr *netlink.Addr) error {
	args := m.Called(link, addr)
	return args.Error(0)
}

// MockSystemController is a mock implementation of the SystemController interface.
type MockSystemController struct {
	mock.Mock
}

func (m *MockSystemController) ReadSysctl(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}
func (m *MockSystemController) WriteSysctl(path, value string) error {
	args := m.Called(path, value)
	return args.Error(0)
}
func (m *MockSystemController) IsNotExist(err error) bool {
	args := m.Called(err)
	return args.Bool(0)
}

// Links builds dummy links with the given names, for LinkList expectations.
func Links(names ...string) []netlink.Link {
	out := make([]netlink.Link, 0, len(names))
	for i, name := range names {
		attrs := netlink.NewLinkAttrs()
		attrs.Name = name
		attrs.Index = i + 1
		out = append(out, &netlink.Dummy{LinkAttrs: attrs})
	}
	return out
}
