package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/clat64/clatd/pkg/cfgtree"
	"github.com/clat64/clatd/pkg/logging"
)

// resolvePlat fills the snapshot's PLAT prefix. Selection order: the
// command-line override, then a static plat_subnet when
// plat_from_dns64 is "no", otherwise DNS64 discovery with the
// configured hostname. Discovery blocks until the prefix is found or
// ctx is cancelled.
func (a *Assembler) resolvePlat(ctx context.Context, tree *cfgtree.Tree, snap *Snapshot) error {
	if a.opts.PlatPrefix != "" {
		slog.Info("plat prefix from command line", "prefix", a.opts.PlatPrefix)
		addr, err := netip.ParseAddr(a.opts.PlatPrefix)
		if err != nil || !addr.Is6() {
			logging.Fatal("invalid IPv6 address specified for plat prefix", "value", a.opts.PlatPrefix)
			return fmt.Errorf("%w: plat prefix %q", ErrBadValue, a.opts.PlatPrefix)
		}
		snap.PlatSubnet = addr
		return nil
	}

	mode, err := itemString(tree, "plat_from_dns64", "yes")
	if err != nil {
		return err
	}
	if mode == "no" {
		addr, err := itemIPv6(tree, "plat_subnet", "")
		if errors.Is(err, ErrMissingItem) {
			logging.Fatal("plat_from_dns64 disabled, but no plat_subnet specified")
			return fmt.Errorf("%w: plat_from_dns64 disabled, but no plat_subnet specified", ErrResolution)
		}
		if err != nil {
			return err
		}
		snap.PlatSubnet = addr
		return nil
	}

	hostname, err := itemString(tree, "plat_from_dns64_hostname", DefaultDNS64Hostname)
	if err != nil {
		return err
	}
	snap.PlatDiscoveryHostname = hostname

	prefix, err := a.detector.Detect(ctx, hostname, a.opts.NetID)
	if err != nil {
		return fmt.Errorf("%w: dns64 discovery: %w", ErrResolution, err)
	}
	snap.PlatSubnet = prefix
	return nil
}
