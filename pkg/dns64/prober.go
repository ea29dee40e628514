package dns64

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Well-known IPv4 addresses of the RFC 7050 discovery hostname. A
// DNS64 answer embedding one of these in its low 32 bits is a
// synthesized address carrying the PLAT prefix.
var wellKnownIPv4 = []netip.Addr{
	netip.AddrFrom4([4]byte{192, 0, 0, 170}),
	netip.AddrFrom4([4]byte{192, 0, 0, 171}),
}

const queryTimeout = 5 * time.Second

// Prober issues AAAA queries for the discovery hostname and derives
// the PLAT /96 prefix from the synthesized answers.
type Prober struct {
	servers []string
	client  *dns.Client
}

// NewProber creates a Prober querying the given host:port resolvers.
// With none supplied the system resolvers from /etc/resolv.conf are
// used.
func NewProber(servers []string) (*Prober, error) {
	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("load resolver config: %w", err)
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("no resolvers configured")
	}
	return &Prober{
		servers: servers,
		client:  &dns.Client{Timeout: queryTimeout},
	}, nil
}

// Query resolves hostname's AAAA records through each resolver in
// turn and derives the prefix from the first usable answer set. The
// netID is informational here; resolver selection per network is the
// platform's job on hosts that have one.
func (p *Prober) Query(ctx context.Context, hostname string, netID uint32) (netip.Addr, error) {
	slog.Info("detecting NAT64 prefix from DNS", "hostname", hostname, "netid", netID)

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(hostname), dns.TypeAAAA)

	var lastErr error
	for _, server := range p.servers {
		r, _, err := p.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if r.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s returned %s", server, dns.RcodeToString[r.Rcode])
			continue
		}
		prefix, err := prefixFromAnswers(r.Answer)
		if err != nil {
			lastErr = err
			continue
		}
		slog.Info("detected NAT64 prefix", "prefix", fmt.Sprintf("%s/96", prefix))
		return prefix, nil
	}
	return netip.Addr{}, fmt.Errorf("dns64 query %s: %w", hostname, lastErr)
}

// prefixFromAnswers picks the synthesized AAAA answer and zeroes its
// low 32 bits to form the /96 prefix. Answers embedding a well-known
// IPv4 address are preferred; otherwise the first AAAA wins.
func prefixFromAnswers(answers []dns.RR) (netip.Addr, error) {
	var first netip.Addr
	for _, rr := range answers {
		aaaa, ok := rr.(*dns.AAAA)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(aaaa.AAAA.To16())
		if !ok {
			continue
		}
		if embedsWellKnown(addr) {
			return clearLow32(addr), nil
		}
		if !first.IsValid() {
			first = addr
		}
	}
	if !first.IsValid() {
		return netip.Addr{}, errors.New("no AAAA answers")
	}
	return clearLow32(first), nil
}

func embedsWellKnown(addr netip.Addr) bool {
	a := addr.As16()
	embedded := netip.AddrFrom4([4]byte{a[12], a[13], a[14], a[15]})
	for _, wk := range wellKnownIPv4 {
		if embedded == wk {
			return true
		}
	}
	return false
}

// clearLow32 zeroes the last four bytes, keeping the /96 prefix.
func clearLow32(addr netip.Addr) netip.Addr {
	a := addr.As16()
	a[12], a[13], a[14], a[15] = 0, 0, 0, 0
	return netip.AddrFrom16(a)
}
