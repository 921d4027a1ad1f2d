package builtin

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

// LAN owns the LAN bridge and the LAN interface plugins that enslave ports
// into it. The bridge gets the first host address of a prefix reserved
// from the shared prefix pool.
type LAN struct {
	links  network.Netlinker
	logger *logging.Logger

	bridge  string
	created bool
	prefix  netip.Prefix

	plugins []manager.Plugin
	owners  []manager.InterfaceOwner
}

func (l *LAN) Name() string        { return NameLAN }
func (l *LAN) InitAfter() []string { return nil }

func (l *LAN) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	l.logger = ctx.PluginLogger(manager.TypeManager, NameLAN)
	if l.links == nil {
		return errors.New("no netlink backend")
	}

	l.bridge = config.DefaultLANBridge
	var lifs []string
	if ctx.Global != nil {
		if ctx.Global.LANBridge != "" {
			l.bridge = ctx.Global.LANBridge
		}
		lifs = ctx.Global.LANInterfaces
	}

	br, err := l.ensureBridge()
	if err != nil {
		return err
	}

	if ctx.PrefixPool != nil {
		if err := l.assignPrefix(ctx, br); err != nil {
			l.cleanup()
			return err
		}
	}

	for _, name := range lifs {
		p, owner, err := initOwner(ctx, manager.TypeLIF, name)
		if err != nil {
			l.cleanup()
			return err
		}
		l.plugins = append(l.plugins, p)
		l.owners = append(l.owners, owner)
		l.logger.Info("lan interface plugin activated", "plugin", name)
	}
	return nil
}

func (l *LAN) ensureBridge() (netlink.Link, error) {
	if link, err := l.links.LinkByName(l.bridge); err == nil {
		if _, ok := link.(*netlink.Bridge); !ok {
			return nil, fmt.Errorf("%s exists and is not a bridge (%s)", l.bridge, link.Type())
		}
		l.logger.Debug("reusing existing bridge", "bridge", l.bridge)
		return link, l.links.LinkSetUp(link)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = l.bridge
	if err := l.links.LinkAdd(&netlink.Bridge{LinkAttrs: attrs}); err != nil {
		return nil, fmt.Errorf("failed to create bridge %s: %w", l.bridge, err)
	}
	l.created = true

	link, err := l.links.LinkByName(l.bridge)
	if err != nil {
		l.cleanup()
		return nil, fmt.Errorf("bridge %s vanished after creation: %w", l.bridge, err)
	}
	if err := l.links.LinkSetUp(link); err != nil {
		l.cleanup()
		return nil, fmt.Errorf("failed to bring up bridge %s: %w", l.bridge, err)
	}
	l.logger.Info("bridge created", "bridge", l.bridge)
	return link, nil
}

// assignPrefix reserves a prefix that conflicts with no address already on
// the host, other than the bridge's own, and puts its first host address
// on the bridge.
func (l *LAN) assignPrefix(ctx *manager.Context, br netlink.Link) error {
	addrs, err := l.links.AddrList(nil, unix.AF_INET)
	if err != nil {
		return fmt.Errorf("failed to list host addresses: %w", err)
	}
	var used []netip.Prefix
	for _, a := range addrs {
		if a.LinkIndex == br.Attrs().Index {
			continue
		}
		if p, ok := toPrefix(a.IPNet); ok {
			used = append(used, p)
		}
	}
	ctx.PrefixPool.Exclude(used...)

	prefix, err := ctx.PrefixPool.Reserve(NameLAN)
	if err != nil {
		return fmt.Errorf("failed to reserve lan prefix: %w", err)
	}
	l.prefix = prefix

	host := prefix.Addr().Next()
	addr := &netlink.Addr{IPNet: &net.IPNet{
		IP:   net.IP(host.AsSlice()),
		Mask: net.CIDRMask(prefix.Bits(), 32),
	}}
	if err := l.links.AddrReplace(br, addr); err != nil {
		return fmt.Errorf("failed to address bridge %s: %w", l.bridge, err)
	}
	l.logger.Info("bridge addressed", "bridge", l.bridge, "address", netip.PrefixFrom(host, prefix.Bits()))
	return nil
}

func toPrefix(n *net.IPNet) (netip.Prefix, bool) {
	if n == nil {
		return netip.Prefix{}, false
	}
	ip, ok := netip.AddrFromSlice(n.IP.To4())
	if !ok {
		return netip.Prefix{}, false
	}
	ones, bits := n.Mask.Size()
	if bits != 32 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(ip, ones).Masked(), true
}

func (l *LAN) Dispose() error {
	return l.cleanup()
}

// cleanup disposes the LAN interface plugins in reverse and deletes the
// bridge if this manager created it.
func (l *LAN) cleanup() error {
	var errs []error
	for _, p := range slices.Backward(l.plugins) {
		if err := p.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("lif plugin %s: %w", p.Name(), err))
		}
	}
	l.plugins, l.owners = nil, nil

	if l.created {
		l.created = false
		attrs := netlink.NewLinkAttrs()
		attrs.Name = l.bridge
		if err := l.links.LinkDel(&netlink.Bridge{LinkAttrs: attrs}); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete bridge %s: %w", l.bridge, err))
		} else {
			l.logger.Info("bridge deleted", "bridge", l.bridge)
		}
	}
	return errors.Join(errs...)
}

// LANInterfaces returns the LAN interface plugins in configured order.
func (l *LAN) LANInterfaces() []manager.InterfaceOwner {
	return slices.Clone(l.owners)
}

// Bridge returns the LAN bridge name.
func (l *LAN) Bridge() string {
	return l.bridge
}

// Prefix returns the prefix assigned to the bridge, if any.
func (l *LAN) Prefix() netip.Prefix {
	return l.prefix
}
