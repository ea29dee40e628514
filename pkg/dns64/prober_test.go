package dns64

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func aaaaHandler(ips ...string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		for _, ip := range ips {
			m.Answer = append(m.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
				AAAA: net.ParseIP(ip),
			})
		}
		w.WriteMsg(m)
	}
}

func rcodeHandler(rcode int) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, rcode)
		w.WriteMsg(m)
	}
}

func TestProberQueryWellKnown(t *testing.T) {
	addr := startDNS(t, aaaaHandler("64:ff9b::c000:aa"))
	p, err := NewProber([]string{addr})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	got, err := p.Query(context.Background(), "ipv4only.arpa", NetIDUnset)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if want := netip.MustParseAddr("64:ff9b::"); got != want {
		t.Errorf("prefix = %s, want %s", got, want)
	}
}

func TestProberPrefersWellKnown(t *testing.T) {
	addr := startDNS(t, aaaaHandler("2001:db8::1", "2001:db8:64::c000:ab"))
	p, err := NewProber([]string{addr})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	got, err := p.Query(context.Background(), "ipv4only.arpa", NetIDUnset)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if want := netip.MustParseAddr("2001:db8:64::"); got != want {
		t.Errorf("prefix = %s, want %s", got, want)
	}
}

func TestProberFallsBackToFirstAnswer(t *testing.T) {
	addr := startDNS(t, aaaaHandler("2001:db8::102:304"))
	p, err := NewProber([]string{addr})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	got, err := p.Query(context.Background(), "ipv4only.arpa", NetIDUnset)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if want := netip.MustParseAddr("2001:db8::"); got != want {
		t.Errorf("prefix = %s, want %s", got, want)
	}
}

func TestProberNoAnswers(t *testing.T) {
	addr := startDNS(t, aaaaHandler())
	p, err := NewProber([]string{addr})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	if _, err := p.Query(context.Background(), "ipv4only.arpa", NetIDUnset); err == nil {
		t.Fatal("expected error for empty answer section")
	}
}

func TestProberServerFailure(t *testing.T) {
	addr := startDNS(t, rcodeHandler(dns.RcodeServerFailure))
	p, err := NewProber([]string{addr})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	_, err = p.Query(context.Background(), "ipv4only.arpa", NetIDUnset)
	if err == nil {
		t.Fatal("expected error for SERVFAIL")
	}
	if !strings.Contains(err.Error(), "SERVFAIL") {
		t.Errorf("err = %v, want mention of SERVFAIL", err)
	}
}

func TestProberTriesNextServer(t *testing.T) {
	bad := startDNS(t, rcodeHandler(dns.RcodeServerFailure))
	good := startDNS(t, aaaaHandler("64:ff9b::c000:aa"))
	p, err := NewProber([]string{bad, good})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	got, err := p.Query(context.Background(), "ipv4only.arpa", NetIDUnset)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if want := netip.MustParseAddr("64:ff9b::"); got != want {
		t.Errorf("prefix = %s, want %s", got, want)
	}
}

func TestPrefixFromAnswers(t *testing.T) {
	aaaa := func(ip string) dns.RR {
		return &dns.AAAA{
			Hdr:  dns.RR_Header{Name: "ipv4only.arpa.", Rrtype: dns.TypeAAAA, Class: dns.ClassINET},
			AAAA: net.ParseIP(ip),
		}
	}
	cname := &dns.CNAME{
		Hdr:    dns.RR_Header{Name: "ipv4only.arpa.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET},
		Target: "example.org.",
	}

	tests := []struct {
		name    string
		answers []dns.RR
		want    string
		wantErr bool
	}{
		{"well-known 170", []dns.RR{aaaa("64:ff9b::c000:aa")}, "64:ff9b::", false},
		{"well-known 171", []dns.RR{aaaa("64:ff9b::c000:ab")}, "64:ff9b::", false},
		{"prefers well-known over first", []dns.RR{aaaa("2001:db8::1"), aaaa("64:ff9b::c000:aa")}, "64:ff9b::", false},
		{"first answer fallback", []dns.RR{aaaa("2001:db8::aabb:ccdd")}, "2001:db8::", false},
		{"skips non-AAAA records", []dns.RR{cname, aaaa("64:ff9b::c000:aa")}, "64:ff9b::", false},
		{"empty", nil, "", true},
		{"only non-AAAA", []dns.RR{cname}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prefixFromAnswers(tt.answers)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("prefixFromAnswers: %v", err)
			}
			if want := netip.MustParseAddr(tt.want); got != want {
				t.Errorf("prefix = %s, want %s", got, want)
			}
		})
	}
}
