package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSystemController(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net", "ipv4"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "net", "ipv4", "ip_forward"), []byte("0\n"), 0644))

	sys := &RealSystemController{Root: root}

	val, err := sys.ReadSysctl("net.ipv4.ip_forward")
	require.NoError(t, err)
	assert.Equal(t, "0", val)

	require.NoError(t, sys.WriteSysctl("net.ipv4.ip_forward", "1"))
	val, err = sys.ReadSysctl(filepath.Join(root, "net", "ipv4", "ip_forward"))
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	_, err = sys.ReadSysctl("net.ipv6.conf.all.forwarding")
	assert.True(t, sys.IsNotExist(err))
}

func TestIsPhysical(t *testing.T) {
	for _, name := range []string{"eth0", "enp3s0", "wlan0", "wlp2s0"} {
		assert.True(t, IsPhysical(name), name)
	}
	for _, name := range []string{"lo", "ppp0", "br0", "wrtd-br0", "veth1", "tun0", ""} {
		assert.False(t, IsPhysical(name), name)
	}
}
