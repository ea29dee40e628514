// Package api implements the HTTP status API and Prometheus metrics
// endpoint.
package api

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse holds daemon status information.
type StatusResponse struct {
	State           string     `json:"state"` // assembling | running
	Uptime          string     `json:"uptime"`
	UptimeSeconds   float64    `json:"uptime_seconds"`
	ConfigAssembled bool       `json:"config_assembled"`
	PrefixSource    string     `json:"prefix_source,omitempty"` // override | static | dns64
	DNS64           DNS64Stats `json:"dns64"`
}

// DNS64Stats holds discovery loop counters.
type DNS64Stats struct {
	Attempts       uint64 `json:"attempts"`
	Failures       uint64 `json:"failures"`
	BackoffSeconds int    `json:"backoff_seconds"`
	Discovered     bool   `json:"discovered"`
	Prefix         string `json:"prefix,omitempty"`
}

// ConfigInfo holds the assembled configuration as reported over the
// API. MTU and IPv4MTU are the configured values with -1 meaning
// auto; the effective fields carry the resolved results.
type ConfigInfo struct {
	UplinkInterface   string `json:"uplink_interface"`
	MTU               int16  `json:"mtu"`
	IPv4MTU           int16  `json:"ipv4mtu"`
	EffectiveMTU      int    `json:"effective_mtu"`
	EffectiveIPv4MTU  int    `json:"effective_ipv4mtu"`
	IPv4LocalSubnet   string `json:"ipv4_local_subnet"`
	IPv6LocalSubnet   string `json:"ipv6_local_subnet"`
	PlatSubnet        string `json:"plat_subnet"`
	DiscoveryHostname string `json:"plat_from_dns64_hostname,omitempty"`
}

// PrefixInfo describes the resolved PLAT prefix.
type PrefixInfo struct {
	PlatSubnet string `json:"plat_subnet"`
	Source     string `json:"source"`
	Hostname   string `json:"hostname,omitempty"`
}

// Source exposes daemon state to the API handlers. ConfigInfo
// reports false until assembly completes.
type Source interface {
	Status() StatusResponse
	ConfigInfo() (ConfigInfo, bool)
}
