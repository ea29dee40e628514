// Package ifaddr reads addresses and MTU from local network
// interfaces via netlink.
package ifaddr

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Flags that disqualify an address: expired, still in duplicate
// address detection, or a rotating privacy address. The clat address
// is derived from the picked address, so it has to hold still.
const unusableFlags = unix.IFA_F_DEPRECATED | unix.IFA_F_TENTATIVE |
	unix.IFA_F_DADFAILED | unix.IFA_F_TEMPORARY

// Source reads interface facts from the kernel.
type Source struct{}

// GlobalUnicast returns a stable global unicast IPv6 address assigned
// to the named interface. Link-local, deprecated, tentative and
// temporary addresses are skipped; with several candidates the first
// one reported wins. ULA addresses count as global here, translation
// on fd00::/8 networks is a supported deployment.
func (Source) GlobalUnicast(ifname string) (netip.Addr, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("find interface %s: %w", ifname, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V6)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("list addresses on %s: %w", ifname, err)
	}
	addr, ok := pickGlobal(addrs)
	if !ok {
		return netip.Addr{}, fmt.Errorf("no usable global ipv6 address on %s", ifname)
	}
	return addr, nil
}

// MTU returns the interface MTU.
func (Source) MTU(ifname string) (int, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return 0, fmt.Errorf("find interface %s: %w", ifname, err)
	}
	return link.Attrs().MTU, nil
}

func pickGlobal(addrs []netlink.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		if a.Scope != unix.RT_SCOPE_UNIVERSE || a.Flags&unusableFlags != 0 {
			continue
		}
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok || !addr.Is6() || addr.Is4In6() || !addr.IsGlobalUnicast() {
			continue
		}
		return addr, true
	}
	return netip.Addr{}, false
}
