package lanbridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

func link(name string) netlink.Link {
	return network.Links(name)[0]
}

func initPlugin(t *testing.T, nl network.Netlinker, cfg config.PluginConfig, global *config.GlobalConfig) *Plugin {
	t.Helper()
	p := New(nl)
	ctx := &manager.Context{Global: global, Logger: logging.Discard()}
	require.NoError(t, p.Init(cfg, t.TempDir(), t.TempDir(), ctx))
	return p
}

func TestPlugin_EnslavesMatchingPorts(t *testing.T) {
	br, wl0, eth1 := link("wrtd-br0"), link("wl0"), link("eth1")
	nl := new(network.MockNetlinker)
	nl.On("LinkByName", "wrtd-br0").Return(br, nil)
	nl.On("LinkByName", "wl0").Return(wl0, nil)
	nl.On("LinkByName", "eth1").Return(eth1, nil)
	nl.On("LinkSetMaster", wl0, br).Return(nil).Once()
	nl.On("LinkSetMaster", eth1, br).Return(nil).Once()
	nl.On("LinkSetUp", wl0).Return(nil).Once()
	nl.On("LinkSetUp", eth1).Return(nil).Once()
	nl.On("LinkSetNoMaster", eth1).Return(nil).Once()

	p := initPlugin(t, nl, nil, nil)

	assert.True(t, p.InterfaceAppeared("wl0"))
	assert.True(t, p.InterfaceAppeared("eth1"))
	assert.False(t, p.InterfaceAppeared("ppp0"))
	assert.Equal(t, []string{"eth1", "wl0"}, p.Ports())

	p.InterfaceDisappeared("wl0")
	p.InterfaceDisappeared("unknown0")
	assert.Equal(t, []string{"eth1"}, p.Ports())

	require.NoError(t, p.Dispose())
	assert.Empty(t, p.Ports())
	nl.AssertExpectations(t)
}

func TestPlugin_ConfiguredBridgeAndFilters(t *testing.T) {
	br, wl0 := link("br-lan"), link("wl0")
	nl := new(network.MockNetlinker)
	nl.On("LinkByName", "br-lan").Return(br, nil)
	nl.On("LinkByName", "wl0").Return(wl0, nil)
	nl.On("LinkSetMaster", wl0, br).Return(nil).Once()
	nl.On("LinkSetUp", wl0).Return(nil).Once()

	global := config.DefaultGlobalConfig()
	global.LANBridge = "br-lan"
	p := initPlugin(t, nl, config.PluginConfig{"prefixes": []any{"wl", "eth"}, "exclude": []any{"eth0"}}, global)

	assert.False(t, p.InterfaceAppeared("eth0"))
	assert.False(t, p.InterfaceAppeared("enp1s0"))
	assert.True(t, p.InterfaceAppeared("wl0"))
	nl.AssertExpectations(t)
}

func TestPlugin_DeclinesOnNetlinkFailure(t *testing.T) {
	nl := new(network.MockNetlinker)
	nl.On("LinkByName", "wrtd-br0").Return(nil, errors.New("link not found"))

	p := initPlugin(t, nl, nil, nil)
	assert.False(t, p.InterfaceAppeared("eth0"))
	assert.Empty(t, p.Ports())
}

func TestPlugin_DisposeReportsFailures(t *testing.T) {
	br, eth0, eth1 := link("wrtd-br0"), link("eth0"), link("eth1")
	nl := new(network.MockNetlinker)
	nl.On("LinkByName", "wrtd-br0").Return(br, nil)
	nl.On("LinkByName", "eth0").Return(eth0, nil).Once()
	nl.On("LinkByName", "eth1").Return(eth1, nil)
	nl.On("LinkSetMaster", eth0, br).Return(nil)
	nl.On("LinkSetMaster", eth1, br).Return(nil)
	nl.On("LinkSetUp", eth0).Return(nil)
	nl.On("LinkSetUp", eth1).Return(nil)

	p := initPlugin(t, nl, nil, nil)
	require.True(t, p.InterfaceAppeared("eth0"))
	require.True(t, p.InterfaceAppeared("eth1"))

	nl.On("LinkByName", "eth0").Return(nil, errors.New("link not found")).Once()
	nl.On("LinkSetNoMaster", eth1).Return(nil).Once()

	err := p.Dispose()
	assert.ErrorContains(t, err, "port eth0")
	assert.Empty(t, p.Ports())
}

func TestPlugin_InitRequiresNetlink(t *testing.T) {
	ctx := &manager.Context{Logger: logging.Discard()}
	assert.Error(t, New(nil).Init(nil, "", "", ctx))
}
