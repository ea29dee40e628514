package daemon

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clat64/clatd/pkg/config"
)

type fakeLinks struct {
	mu   sync.Mutex
	addr netip.Addr
	aerr error
	mtu  int
	merr error
}

func (f *fakeLinks) GlobalUnicast(ifname string) (netip.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aerr != nil {
		return netip.Addr{}, f.aerr
	}
	return f.addr, nil
}

func (f *fakeLinks) MTU(ifname string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.merr != nil {
		return 0, f.merr
	}
	return f.mtu, nil
}

func (f *fakeLinks) setAddr(a netip.Addr) {
	f.mu.Lock()
	f.addr = a
	f.mu.Unlock()
}

func (f *fakeLinks) setAddrErr(err error) {
	f.mu.Lock()
	f.aerr = err
	f.mu.Unlock()
}

type stubQuerier struct {
	prefix netip.Addr
}

func (s stubQuerier) Query(ctx context.Context, hostname string, netID uint32) (netip.Addr, error) {
	return s.prefix, nil
}

func TestResolveMTUs(t *testing.T) {
	tests := []struct {
		name    string
		mtu     int16
		ipv4mtu int16
		linkMTU int
		linkErr error
		want    MTUs
		wantErr bool
	}{
		{name: "oversized clamps", mtu: 9000, ipv4mtu: -1, want: MTUs{IPv6: 1500, IPv4: 1472}},
		{name: "auto reads link", mtu: -1, ipv4mtu: -1, linkMTU: 1500, want: MTUs{IPv6: 1500, IPv4: 1472}},
		{name: "zero reads link", mtu: 0, ipv4mtu: -1, linkMTU: 9000, want: MTUs{IPv6: 9000, IPv4: 8972}},
		{name: "small link raised", mtu: -1, ipv4mtu: -1, linkMTU: 1200, want: MTUs{IPv6: 1280, IPv4: 1252}},
		{name: "undersized raised", mtu: 1000, ipv4mtu: -1, want: MTUs{IPv6: 1280, IPv4: 1252}},
		{name: "explicit ipv4 kept", mtu: 1500, ipv4mtu: 1400, want: MTUs{IPv6: 1500, IPv4: 1400}},
		{name: "ipv4 above headroom derived", mtu: 1500, ipv4mtu: 1480, want: MTUs{IPv6: 1500, IPv4: 1472}},
		{name: "link read fails", mtu: -1, ipv4mtu: -1, linkErr: errors.New("no such device"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &config.Snapshot{UplinkInterface: "wwan0", MTU: tt.mtu, IPv4MTU: tt.ipv4mtu}
			links := &fakeLinks{mtu: tt.linkMTU, merr: tt.linkErr}

			got, err := ResolveMTUs(snap, links)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveMTUs: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWatchPrefixMoved(t *testing.T) {
	clk := clock.NewMock()
	links := &fakeLinks{addr: netip.MustParseAddr("2001:db8:1::5")}

	d := New(Options{Interface: "wwan0"})
	d.clk = clk
	d.links = links

	snap := &config.Snapshot{
		UplinkInterface: "wwan0",
		IPv6LocalSubnet: netip.MustParseAddr("2001:db8:1::a:b"),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.watchPrefix(context.Background(), snap) }()

	time.Sleep(10 * time.Millisecond) // let the ticker arm
	clk.Add(watchInterval)            // same prefix, keeps running
	time.Sleep(10 * time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("watch returned early: %v", err)
	default:
	}

	links.setAddr(netip.MustParseAddr("2001:db8:2::5"))
	clk.Add(watchInterval)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPrefixMoved) {
			t.Fatalf("err = %v, want ErrPrefixMoved", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not notice the moved prefix")
	}
}

func TestWatchPrefixReadErrorContinues(t *testing.T) {
	clk := clock.NewMock()
	links := &fakeLinks{aerr: errors.New("link flap")}

	d := New(Options{Interface: "wwan0"})
	d.clk = clk
	d.links = links

	snap := &config.Snapshot{
		UplinkInterface: "wwan0",
		IPv6LocalSubnet: netip.MustParseAddr("2001:db8:1::a:b"),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.watchPrefix(context.Background(), snap) }()

	time.Sleep(10 * time.Millisecond)
	clk.Add(watchInterval) // read fails, watch keeps running
	time.Sleep(10 * time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("watch returned on read error: %v", err)
	default:
	}

	links.setAddrErr(nil)
	links.setAddr(netip.MustParseAddr("2001:db8:2::5"))
	clk.Add(watchInterval)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPrefixMoved) {
			t.Fatalf("err = %v, want ErrPrefixMoved", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not notice the moved prefix")
	}
}

func TestWatchPrefixCancelled(t *testing.T) {
	clk := clock.NewMock()

	d := New(Options{Interface: "wwan0"})
	d.clk = clk
	d.links = &fakeLinks{addr: netip.MustParseAddr("2001:db8::1")}

	snap := &config.Snapshot{
		UplinkInterface: "wwan0",
		IPv6LocalSubnet: netip.MustParseAddr("2001:db8::2"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.watchPrefix(ctx, snap) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestStatusAndConfigInfo(t *testing.T) {
	clk := clock.NewMock()

	d := New(Options{Interface: "wwan0"})
	d.clk = clk
	d.mu.Lock()
	d.started = clk.Now()
	d.mu.Unlock()
	clk.Add(90 * time.Second)

	st := d.Status()
	if st.State != "assembling" || st.ConfigAssembled {
		t.Errorf("before assembly: state = %q, assembled = %v", st.State, st.ConfigAssembled)
	}
	if st.UptimeSeconds != 90 || st.Uptime != "1m30s" {
		t.Errorf("uptime = %q (%v s), want 1m30s", st.Uptime, st.UptimeSeconds)
	}
	if _, ok := d.ConfigInfo(); ok {
		t.Error("ConfigInfo ok before assembly")
	}

	snap := &config.Snapshot{
		UplinkInterface:       "wwan0",
		MTU:                   -1,
		IPv4MTU:               -1,
		IPv4LocalSubnet:       netip.MustParseAddr("192.0.0.4"),
		IPv6LocalSubnet:       netip.MustParseAddr("2001:db8::a8bb:ccff:fe00:1"),
		PlatSubnet:            netip.MustParseAddr("64:ff9b::"),
		PlatDiscoveryHostname: "ipv4only.arpa",
	}
	d.store(snap, MTUs{IPv6: 1500, IPv4: 1472})

	st = d.Status()
	if st.State != "running" || !st.ConfigAssembled {
		t.Errorf("after assembly: state = %q, assembled = %v", st.State, st.ConfigAssembled)
	}
	if st.PrefixSource != "dns64" {
		t.Errorf("prefix source = %q, want dns64", st.PrefixSource)
	}

	info, ok := d.ConfigInfo()
	if !ok {
		t.Fatal("ConfigInfo not ok after assembly")
	}
	if info.PlatSubnet != "64:ff9b::/96" || info.DiscoveryHostname != "ipv4only.arpa" {
		t.Errorf("info = %+v", info)
	}
	if info.EffectiveMTU != 1500 || info.EffectiveIPv4MTU != 1472 {
		t.Errorf("effective mtus = %d/%d", info.EffectiveMTU, info.EffectiveIPv4MTU)
	}
	if info.MTU != -1 || info.IPv4MTU != -1 {
		t.Errorf("configured mtus = %d/%d, want -1/-1", info.MTU, info.IPv4MTU)
	}
}

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clatd.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunOnceStaticPlat(t *testing.T) {
	path := writeConf(t, "mtu 1500\nipv4mtu -1\nplat_from_dns64 no\nplat_subnet 64:ff9b::\n")

	d := New(Options{ConfigFile: path, Interface: "wwan0", Once: true})
	d.links = &fakeLinks{addr: netip.MustParseAddr("2001:db8:64::1"), mtu: 1500}

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	info, ok := d.ConfigInfo()
	if !ok {
		t.Fatal("snapshot not stored")
	}
	if info.PlatSubnet != "64:ff9b::/96" || info.EffectiveIPv4MTU != 1472 {
		t.Errorf("info = %+v", info)
	}

	st := d.Status()
	if st.PrefixSource != "static" {
		t.Errorf("prefix source = %q, want static", st.PrefixSource)
	}
	if st.DNS64.Attempts != 0 {
		t.Errorf("dns64 attempts = %d, want 0", st.DNS64.Attempts)
	}
}

func TestRunOnceDiscovery(t *testing.T) {
	path := writeConf(t, "mtu -1\n")

	d := New(Options{ConfigFile: path, Interface: "wwan0", Once: true})
	d.querier = stubQuerier{prefix: netip.MustParseAddr("64:ff9b::")}
	d.links = &fakeLinks{addr: netip.MustParseAddr("2001:db8:64::1"), mtu: 9000}

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	info, ok := d.ConfigInfo()
	if !ok {
		t.Fatal("snapshot not stored")
	}
	if info.EffectiveMTU != 9000 || info.EffectiveIPv4MTU != 8972 {
		t.Errorf("effective mtus = %d/%d, want 9000/8972", info.EffectiveMTU, info.EffectiveIPv4MTU)
	}

	st := d.Status()
	if st.PrefixSource != "dns64" {
		t.Errorf("prefix source = %q, want dns64", st.PrefixSource)
	}
	if !st.DNS64.Discovered || st.DNS64.Prefix != "64:ff9b::/96" {
		t.Errorf("dns64 = %+v", st.DNS64)
	}
	if st.DNS64.Attempts != 1 || st.DNS64.Failures != 0 {
		t.Errorf("attempts/failures = %d/%d, want 1/0", st.DNS64.Attempts, st.DNS64.Failures)
	}
}
