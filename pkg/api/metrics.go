package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// clatdCollector implements prometheus.Collector, reading daemon
// state on each scrape.
type clatdCollector struct {
	srv *Server

	queriesTotal     *prometheus.Desc
	failuresTotal    *prometheus.Desc
	backoffSeconds   *prometheus.Desc
	prefixDiscovered *prometheus.Desc
	configAssembled  *prometheus.Desc
	uptimeSeconds    *prometheus.Desc
	configInfo       *prometheus.Desc
	mtuBytes         *prometheus.Desc
}

func newCollector(srv *Server) *clatdCollector {
	return &clatdCollector{
		srv: srv,

		queriesTotal: prometheus.NewDesc(
			"clatd_dns64_queries_total",
			"Total DNS64 discovery queries issued.",
			nil, nil,
		),
		failuresTotal: prometheus.NewDesc(
			"clatd_dns64_failures_total",
			"Total failed DNS64 discovery queries.",
			nil, nil,
		),
		backoffSeconds: prometheus.NewDesc(
			"clatd_dns64_backoff_seconds",
			"Most recent DNS64 retry backoff in seconds.",
			nil, nil,
		),
		prefixDiscovered: prometheus.NewDesc(
			"clatd_dns64_prefix_discovered",
			"Whether a PLAT prefix has been discovered (0 or 1).",
			nil, nil,
		),
		configAssembled: prometheus.NewDesc(
			"clatd_config_assembled",
			"Whether the configuration snapshot is assembled (0 or 1).",
			nil, nil,
		),
		uptimeSeconds: prometheus.NewDesc(
			"clatd_uptime_seconds",
			"Seconds since the daemon started.",
			nil, nil,
		),
		configInfo: prometheus.NewDesc(
			"clatd_config_info",
			"Assembled configuration identity.",
			[]string{"uplink_interface", "plat_subnet", "ipv6_local_subnet"}, nil,
		),
		mtuBytes: prometheus.NewDesc(
			"clatd_mtu_bytes",
			"Effective MTU per address family.",
			[]string{"family"}, nil,
		),
	}
}

func (c *clatdCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queriesTotal
	ch <- c.failuresTotal
	ch <- c.backoffSeconds
	ch <- c.prefixDiscovered
	ch <- c.configAssembled
	ch <- c.uptimeSeconds
	ch <- c.configInfo
	ch <- c.mtuBytes
}

func (c *clatdCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.srv.source.Status()
	ch <- prometheus.MustNewConstMetric(c.queriesTotal, prometheus.CounterValue,
		float64(st.DNS64.Attempts))
	ch <- prometheus.MustNewConstMetric(c.failuresTotal, prometheus.CounterValue,
		float64(st.DNS64.Failures))
	ch <- prometheus.MustNewConstMetric(c.backoffSeconds, prometheus.GaugeValue,
		float64(st.DNS64.BackoffSeconds))
	ch <- prometheus.MustNewConstMetric(c.prefixDiscovered, prometheus.GaugeValue,
		boolToFloat(st.DNS64.Discovered))
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.GaugeValue,
		st.UptimeSeconds)

	info, ok := c.srv.source.ConfigInfo()
	ch <- prometheus.MustNewConstMetric(c.configAssembled, prometheus.GaugeValue,
		boolToFloat(ok))
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.configInfo, prometheus.GaugeValue, 1,
		info.UplinkInterface, info.PlatSubnet, info.IPv6LocalSubnet)
	ch <- prometheus.MustNewConstMetric(c.mtuBytes, prometheus.GaugeValue,
		float64(info.EffectiveMTU), "inet6")
	ch <- prometheus.MustNewConstMetric(c.mtuBytes, prometheus.GaugeValue,
		float64(info.EffectiveIPv4MTU), "inet")
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
