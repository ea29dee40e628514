// Package config assembles the daemon's translation configuration:
// typed items from the config file, the PLAT prefix from override,
// static value or DNS64 discovery, and a checksum-neutral local IPv6
// address.
package config

import (
	"bytes"
	"log/slog"
	"net/netip"
)

// Defaults for optional configuration items.
const (
	// DefaultIPv4LocalSubnet is the well-known CLAT IPv4 address
	// (RFC 7335).
	DefaultIPv4LocalSubnet = "192.0.0.4"
	// DefaultDNS64Hostname is the RFC 7050 discovery name.
	DefaultDNS64Hostname = "ipv4only.arpa"
)

// NetIDUnset selects the default network for DNS64 discovery.
const NetIDUnset uint32 = 0

// Snapshot is the assembled daemon configuration. It is built once
// per Assemble call and read-only afterwards; re-assembly produces a
// fresh value instead of patching in place.
type Snapshot struct {
	UplinkInterface string

	MTU     int16 // -1 = auto
	IPv4MTU int16 // -1 = auto

	IPv4LocalSubnet netip.Addr
	IPv6LocalSubnet netip.Addr
	PlatSubnet      netip.Addr // /96 by convention
	IPv6HostID      netip.Addr // :: means the IID was generated

	// PlatDiscoveryHostname is set only when the PLAT prefix came
	// from DNS64 discovery.
	PlatDiscoveryHostname string
}

// Dump logs every resolved field at debug severity.
func (s *Snapshot) Dump() {
	slog.Debug("configuration",
		"uplink_interface", s.UplinkInterface,
		"mtu", s.MTU,
		"ipv4mtu", s.IPv4MTU,
		"ipv4_local_subnet", s.IPv4LocalSubnet.String(),
		"ipv6_local_subnet", s.IPv6LocalSubnet.String(),
		"plat_subnet", s.PlatSubnet.String()+"/96",
	)
}

// SamePrefix64 reports whether two addresses share their upper 64
// bits. The daemon uses it to notice the uplink /64 moving under an
// assembled configuration.
func SamePrefix64(a, b netip.Addr) bool {
	x, y := a.As16(), b.As16()
	return bytes.Equal(x[:8], y[:8])
}
