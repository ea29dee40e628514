// clatd assembles the customer-side translator (CLAT) configuration
// for a 464XLAT host: it discovers the PLAT translation prefix via
// DNS64, derives a checksum-neutral local IPv6 address on the uplink
// interface and serves the result over a local status API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/clat64/clatd/pkg/daemon"
	"github.com/clat64/clatd/pkg/logging"
)

func main() {
	configFile := flag.String("config", "/etc/clatd.conf", "configuration file path")
	iface := flag.String("interface", "", "uplink interface name (required)")
	platPrefix := flag.String("plat-prefix", "", "PLAT /96 prefix, skips DNS64 discovery")
	netID := flag.Uint("net-id", 0, "network identifier for scoped DNS64 queries (0 = default)")
	apiAddr := flag.String("api-addr", "127.0.0.1:9464", "status API listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	syslogAddr := flag.String("syslog", "", "forward logs to a UDP syslog receiver (host:port)")
	once := flag.Bool("once", false, "assemble and dump the configuration, then exit")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	closeLog, err := logging.Setup(logging.Options{Level: level, Syslog: *syslogAddr, Tag: "clatd"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clatd: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	d := daemon.New(daemon.Options{
		ConfigFile: *configFile,
		Interface:  *iface,
		PlatPrefix: *platPrefix,
		NetID:      uint32(*netID),
		APIAddr:    *apiAddr,
		Once:       *once,
	})

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "clatd: %v\n", err)
		os.Exit(1)
	}
}
