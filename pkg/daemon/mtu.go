package daemon

import (
	"fmt"
	"log/slog"

	"github.com/clat64/clatd/pkg/config"
)

const (
	maxMTU = 1500
	minMTU = 1280 // IPv6 minimum link MTU
	// mtuDelta is the translation overhead: a 40-byte IPv6 header
	// replaces the 20-byte IPv4 header, plus an 8-byte fragment
	// header.
	mtuDelta = 28
)

// MTUs are the effective tunnel MTUs after the -1 "auto" sentinels
// have been resolved. They live beside the snapshot; the snapshot
// keeps the configured values.
type MTUs struct {
	IPv6 int // translated side
	IPv4 int // CLAT side
}

// ResolveMTUs turns the snapshot's configured MTUs into effective
// ones. Configured values above 1500 clamp down before "auto" reads
// the link MTU, so an oversized link value passes through unclamped.
// Anything below the IPv6 minimum raises to 1280. The IPv4 MTU
// defaults to the IPv6 MTU minus the translation overhead and may
// never exceed that headroom.
func ResolveMTUs(snap *config.Snapshot, links LinkSource) (MTUs, error) {
	mtu := int(snap.MTU)
	if mtu > maxMTU {
		slog.Warn("configured mtu too large", "mtu", mtu, "max", maxMTU)
		mtu = maxMTU
	}
	if mtu <= 0 {
		linkMTU, err := links.MTU(snap.UplinkInterface)
		if err != nil {
			return MTUs{}, fmt.Errorf("read mtu of %s: %w", snap.UplinkInterface, err)
		}
		slog.Debug("using interface mtu", "iface", snap.UplinkInterface, "mtu", linkMTU)
		mtu = linkMTU
	}
	if mtu < minMTU {
		slog.Warn("mtu below ipv6 minimum", "mtu", mtu, "min", minMTU)
		mtu = minMTU
	}

	ipv4MTU := int(snap.IPv4MTU)
	if ipv4MTU <= 0 || ipv4MTU > mtu-mtuDelta {
		ipv4MTU = mtu - mtuDelta
		slog.Debug("derived ipv4 mtu", "ipv4mtu", ipv4MTU)
	}
	return MTUs{IPv6: mtu, IPv4: ipv4MTU}, nil
}
