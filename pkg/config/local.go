package config

import (
	"crypto/rand"
	"fmt"
	"net/netip"

	"github.com/clat64/clatd/pkg/checksum"
)

// synthesizeLocal forms the full local IPv6 address from the uplink's
// /64. An unspecified hostID generates a random interface identifier
// made checksum-neutral against the local IPv4 address and the PLAT
// prefix; a set hostID is copied verbatim into the low 64 bits, the
// administrator's choice is trusted as-is.
func synthesizeLocal(subnet, ipv4, plat, hostID netip.Addr) (netip.Addr, error) {
	if hostID.IsValid() && hostID != netip.IPv6Unspecified() {
		return withLow64(subnet, low64(hostID)), nil
	}

	var iid [8]byte
	if _, err := rand.Read(iid[:]); err != nil {
		return netip.Addr{}, fmt.Errorf("generate interface id: %w", err)
	}
	return neutralize(withLow64(subnet, iid), ipv4, plat), nil
}

// neutralize rewrites the adjustable field of addr's interface
// identifier so that
//
//	checksum(ipv4) == checksum(plat) + checksum(addr)
//
// in 16-bit ones'-complement arithmetic. With that equality holding,
// translating a flow between its IPv4 and IPv6 forms leaves the
// transport checksum untouched.
func neutralize(addr, ipv4, plat netip.Addr) netip.Addr {
	a := addr.As16()
	v4 := ipv4.As4()
	p := plat.As16()

	c1 := checksum.Sum(v4[:])
	c2 := checksum.Add(checksum.Sum(p[:]), a[:])
	return setMiddle16(addr, checksum.Adjust(middle16(a), c1, c2))
}

// The adjustable field spans bytes 11 and 12 of the address, keeping
// the subnet and the top of the IID stable. Within the checksum's
// 16-bit words those bytes carry weights 1 and 256 respectively, so
// the field reads low-byte-first.
func middle16(a [16]byte) uint16 {
	return uint16(a[12])<<8 | uint16(a[11])
}

func setMiddle16(addr netip.Addr, v uint16) netip.Addr {
	a := addr.As16()
	a[11] = byte(v)
	a[12] = byte(v >> 8)
	return netip.AddrFrom16(a)
}

// low64 returns the interface-identifier half of addr.
func low64(addr netip.Addr) [8]byte {
	a := addr.As16()
	var iid [8]byte
	copy(iid[:], a[8:])
	return iid
}

// withLow64 returns addr with its low 64 bits replaced by iid.
func withLow64(addr netip.Addr, iid [8]byte) netip.Addr {
	a := addr.As16()
	copy(a[8:], iid[:])
	return netip.AddrFrom16(a)
}
