package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/clat64/clatd/pkg/cfgtree"
	"github.com/clat64/clatd/pkg/logging"
)

// PrefixDetector blocks until the PLAT prefix for the discovery
// hostname is known. netID scopes the query to a specific network;
// NetIDUnset queries the default network.
type PrefixDetector interface {
	Detect(ctx context.Context, hostname string, netID uint32) (netip.Addr, error)
}

// AddrSource reports IPv6 facts about local interfaces.
type AddrSource interface {
	GlobalUnicast(ifname string) (netip.Addr, error)
}

// Options are the process-start parameters for assembly.
type Options struct {
	Path       string // config file path
	Interface  string // uplink interface name, required
	PlatPrefix string // optional PLAT override, IPv6 text
	NetID      uint32 // DNS64 network scope, NetIDUnset = default
}

// Assembler builds one validated Snapshot per call. The detector and
// address source are injected so assembly tests run without DNS
// traffic or netlink.
type Assembler struct {
	opts     Options
	detector PrefixDetector
	addrs    AddrSource
}

func NewAssembler(opts Options, detector PrefixDetector, addrs AddrSource) *Assembler {
	return &Assembler{opts: opts, detector: detector, addrs: addrs}
}

// Assemble reads the config file and produces a complete snapshot,
// aborting at the first invalid item. Every failure is logged at
// fatal severity before it returns; no partial snapshot escapes.
func (a *Assembler) Assemble(ctx context.Context) (*Snapshot, error) {
	tree, err := cfgtree.ParseFile(a.opts.Path)
	if err != nil {
		logging.Fatal("could not read config file", "path", a.opts.Path, "err", err)
		return nil, err
	}
	return a.assemble(ctx, tree)
}

func (a *Assembler) assemble(ctx context.Context, tree *cfgtree.Tree) (*Snapshot, error) {
	if tree.Empty() {
		logging.Fatal("could not read config file", "path", a.opts.Path)
		return nil, fmt.Errorf("%w: config file %s has no items", ErrMissingItem, a.opts.Path)
	}
	if a.opts.Interface == "" {
		logging.Fatal("uplink interface name required")
		return nil, fmt.Errorf("%w: uplink interface", ErrMissingItem)
	}
	if len(a.opts.Interface) >= unix.IFNAMSIZ {
		logging.Fatal("uplink interface name too long", "iface", a.opts.Interface)
		return nil, fmt.Errorf("%w: interface name %q", ErrBadValue, a.opts.Interface)
	}

	snap := &Snapshot{UplinkInterface: a.opts.Interface}

	var err error
	if snap.MTU, err = itemInt16(tree, "mtu", "-1"); err != nil {
		return nil, err
	}
	if snap.IPv4MTU, err = itemInt16(tree, "ipv4mtu", "-1"); err != nil {
		return nil, err
	}
	if snap.IPv4LocalSubnet, err = itemIPv4(tree, "ipv4_local_subnet", DefaultIPv4LocalSubnet); err != nil {
		return nil, err
	}
	if err = a.resolvePlat(ctx, tree, snap); err != nil {
		return nil, err
	}

	subnet, err := a.addrs.GlobalUnicast(a.opts.Interface)
	if err != nil {
		logging.Fatal("unable to find an ipv6 ip on interface", "iface", a.opts.Interface, "err", err)
		return nil, fmt.Errorf("%w: no ipv6 address on %s", ErrResolution, a.opts.Interface)
	}

	if snap.IPv6HostID, err = itemIPv6(tree, "ipv6_host_id", "::"); err != nil {
		return nil, err
	}
	if snap.IPv6LocalSubnet, err = synthesizeLocal(subnet, snap.IPv4LocalSubnet, snap.PlatSubnet, snap.IPv6HostID); err != nil {
		return nil, err
	}

	slog.Info("using local address", "addr", snap.IPv6LocalSubnet.String(), "iface", snap.UplinkInterface)
	return snap, nil
}
