// Package daemon wires configuration assembly, PLAT prefix discovery
// and the status API into a single supervised process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clat64/clatd/pkg/api"
	"github.com/clat64/clatd/pkg/config"
	"github.com/clat64/clatd/pkg/dns64"
	"github.com/clat64/clatd/pkg/ifaddr"
)

// ErrPrefixMoved is returned by Run when the uplink interface no
// longer carries the IPv6 /64 the local address was derived from.
// The daemon cannot rewrite an assembled snapshot, so it exits and
// lets the service manager restart it against the new prefix.
var ErrPrefixMoved = errors.New("uplink ipv6 prefix changed")

// watchInterval is how often the uplink prefix is re-checked.
const watchInterval = 30 * time.Second

// LinkSource reads addresses and link parameters of the uplink
// interface.
type LinkSource interface {
	config.AddrSource
	MTU(ifname string) (int, error)
}

// Options configure a Daemon.
type Options struct {
	ConfigFile string   // defaults to /etc/clatd.conf
	Interface  string   // uplink interface name, required
	PlatPrefix string   // PLAT prefix override, disables discovery
	NetID      uint32   // network identifier for scoped DNS64 queries
	APIAddr    string   // status API listen address, defaults to 127.0.0.1:9464
	Resolvers  []string // DNS64 resolvers, defaults to /etc/resolv.conf
	Once       bool     // assemble, dump and exit
}

// Daemon assembles the CLAT configuration, serves its status over
// HTTP and watches the uplink prefix until stopped.
type Daemon struct {
	opts  Options
	clk   clock.Clock
	links LinkSource

	querier  dns64.Querier
	detector *dns64.Detector

	mu      sync.Mutex
	started time.Time
	snap    *config.Snapshot
	mtus    MTUs
}

// New creates a Daemon with production defaults filled in.
func New(opts Options) *Daemon {
	if opts.ConfigFile == "" {
		opts.ConfigFile = "/etc/clatd.conf"
	}
	if opts.APIAddr == "" {
		opts.APIAddr = "127.0.0.1:9464"
	}
	return &Daemon{
		opts:  opts,
		clk:   clock.New(),
		links: ifaddr.Source{},
	}
}

// Run assembles the configuration and blocks until the context is
// cancelled, a SIGTERM or SIGINT arrives, a component fails, or the
// uplink prefix moves. The status API starts before assembly so
// discovery progress is observable while the daemon waits for DNS64.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting clatd", "pid", os.Getpid(), "iface", d.opts.Interface, "config", d.opts.ConfigFile)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if d.detector == nil {
		querier := d.querier
		if querier == nil {
			querier = newLazyProber(d.opts.Resolvers)
		}
		d.detector = dns64.New(querier, d.clk)
	}

	assembler := config.NewAssembler(config.Options{
		Path:       d.opts.ConfigFile,
		Interface:  d.opts.Interface,
		PlatPrefix: d.opts.PlatPrefix,
		NetID:      d.opts.NetID,
	}, d.detector, d.links)

	d.mu.Lock()
	d.started = d.clk.Now()
	d.mu.Unlock()

	if d.opts.Once {
		return d.runOnce(ctx, assembler)
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	srv := api.NewServer(api.Config{Addr: d.opts.APIAddr, Source: d})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	snap, err := assembler.Assemble(ctx)
	if err != nil {
		stop()
		wg.Wait()
		if errors.Is(err, context.Canceled) {
			slog.Info("shutdown complete")
			return nil
		}
		return fmt.Errorf("assemble configuration: %w", err)
	}
	mtus, err := ResolveMTUs(snap, d.links)
	if err != nil {
		stop()
		wg.Wait()
		return err
	}
	d.store(snap, mtus)
	snap.Dump()
	slog.Info("configuration assembled",
		"iface", snap.UplinkInterface,
		"plat", snap.PlatSubnet.String()+"/96",
		"mtu", mtus.IPv6,
		"ipv4mtu", mtus.IPv4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.watchPrefix(ctx, snap); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		slog.Error("daemon failed", "err", runErr)
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	}

	stop()
	wg.Wait()
	slog.Info("shutdown complete")
	return runErr
}

// runOnce assembles and dumps the configuration without starting any
// servers, for config validation from the command line.
func (d *Daemon) runOnce(ctx context.Context, assembler *config.Assembler) error {
	snap, err := assembler.Assemble(ctx)
	if err != nil {
		return fmt.Errorf("assemble configuration: %w", err)
	}
	mtus, err := ResolveMTUs(snap, d.links)
	if err != nil {
		return err
	}
	d.store(snap, mtus)
	snap.Dump()
	slog.Info("configuration ok",
		"iface", snap.UplinkInterface,
		"plat", snap.PlatSubnet.String()+"/96",
		"mtu", mtus.IPv6,
		"ipv4mtu", mtus.IPv4)
	return nil
}

func (d *Daemon) store(snap *config.Snapshot, mtus MTUs) {
	d.mu.Lock()
	d.snap = snap
	d.mtus = mtus
	d.mu.Unlock()
}

// watchPrefix re-reads the uplink address on a ticker and returns
// ErrPrefixMoved when its upper 64 bits no longer match the assembled
// local subnet. Transient read failures are logged and skipped.
func (d *Daemon) watchPrefix(ctx context.Context, snap *config.Snapshot) error {
	ticker := d.clk.Ticker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			addr, err := d.links.GlobalUnicast(snap.UplinkInterface)
			if err != nil {
				slog.Warn("prefix watch failed", "iface", snap.UplinkInterface, "err", err)
				continue
			}
			if !config.SamePrefix64(addr, snap.IPv6LocalSubnet) {
				slog.Error("uplink ipv6 prefix changed",
					"iface", snap.UplinkInterface,
					"had", snap.IPv6LocalSubnet.String(),
					"now", addr.String())
				return ErrPrefixMoved
			}
		}
	}
}

// Status implements api.Source.
func (d *Daemon) Status() api.StatusResponse {
	d.mu.Lock()
	snap := d.snap
	started := d.started
	d.mu.Unlock()

	var stats dns64.Stats
	if d.detector != nil {
		stats = d.detector.Stats()
	}

	state := "assembling"
	if snap != nil {
		state = "running"
	}
	uptime := d.clk.Now().Sub(started)

	resp := api.StatusResponse{
		State:           state,
		Uptime:          uptime.Truncate(time.Second).String(),
		UptimeSeconds:   uptime.Seconds(),
		ConfigAssembled: snap != nil,
		PrefixSource:    d.prefixSource(snap, stats),
		DNS64: api.DNS64Stats{
			Attempts:       stats.Attempts,
			Failures:       stats.Failures,
			BackoffSeconds: int(stats.LastBackoff / time.Second),
			Discovered:     stats.Discovered,
		},
	}
	if stats.Prefix.IsValid() {
		resp.DNS64.Prefix = stats.Prefix.String() + "/96"
	}
	return resp
}

// ConfigInfo implements api.Source. ok is false until a snapshot has
// been assembled.
func (d *Daemon) ConfigInfo() (api.ConfigInfo, bool) {
	d.mu.Lock()
	snap, mtus := d.snap, d.mtus
	d.mu.Unlock()

	if snap == nil {
		return api.ConfigInfo{}, false
	}
	return api.ConfigInfo{
		UplinkInterface:   snap.UplinkInterface,
		MTU:               snap.MTU,
		IPv4MTU:           snap.IPv4MTU,
		EffectiveMTU:      mtus.IPv6,
		EffectiveIPv4MTU:  mtus.IPv4,
		IPv4LocalSubnet:   snap.IPv4LocalSubnet.String(),
		IPv6LocalSubnet:   snap.IPv6LocalSubnet.String(),
		PlatSubnet:        snap.PlatSubnet.String() + "/96",
		DiscoveryHostname: snap.PlatDiscoveryHostname,
	}, true
}

func (d *Daemon) prefixSource(snap *config.Snapshot, stats dns64.Stats) string {
	switch {
	case d.opts.PlatPrefix != "":
		return "override"
	case snap != nil && snap.PlatDiscoveryHostname != "":
		return "dns64"
	case snap != nil:
		return "static"
	case stats.Attempts > 0:
		return "dns64"
	default:
		return ""
	}
}

// lazyProber defers resolver construction to the first query so that
// a static plat_subnet works on hosts without a resolv.conf.
type lazyProber struct {
	build func() (dns64.Querier, error)
}

func newLazyProber(servers []string) *lazyProber {
	return &lazyProber{build: sync.OnceValues(func() (dns64.Querier, error) {
		p, err := dns64.NewProber(servers)
		if err != nil {
			return nil, err
		}
		return p, nil
	})}
}

func (p *lazyProber) Query(ctx context.Context, hostname string, netID uint32) (netip.Addr, error) {
	q, err := p.build()
	if err != nil {
		return netip.Addr{}, err
	}
	return q.Query(ctx, hostname, netID)
}
