// clatdctl is the operator client for the clatd status API.
//
// It issues one-shot commands (clatdctl status) or runs an interactive
// prompt with history and completion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/clat64/clatd/pkg/api"
)

var errExit = fmt.Errorf("exit")

func main() {
	addr := flag.String("addr", "127.0.0.1:9464", "clatd status API address")
	flag.Parse()

	c := &ctl{
		base:   "http://" + *addr,
		client: &http.Client{Timeout: 5 * time.Second},
	}

	if args := flag.Args(); len(args) > 0 {
		if err := c.dispatch(strings.Join(args, " ")); err != nil && err != errExit {
			fmt.Fprintf(os.Stderr, "clatdctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Verify connectivity before dropping into the prompt.
	if err := c.ping(); err != nil {
		fmt.Fprintf(os.Stderr, "clatdctl: cannot reach clatd at %s: %v\n", *addr, err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "clatd> ",
		HistoryFile:     "/tmp/clatdctl_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("status"),
			readline.PcItem("config"),
			readline.PcItem("prefix"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clatdctl: readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("clatdctl — type 'help' for commands")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.dispatch(line); err != nil {
			if err == errExit {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

type ctl struct {
	base   string
	client *http.Client
}

// envelope mirrors the API response wrapper with the payload left raw
// so each command can decode its own type.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *ctl) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	switch parts[0] {
	case "status":
		return c.showStatus()
	case "config":
		return c.showConfig()
	case "prefix":
		return c.showPrefix()
	case "help", "?":
		c.showHelp()
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (c *ctl) ping() error {
	var data map[string]any
	return c.fetch("/health", &data)
}

func (c *ctl) fetch(path string, v any) error {
	resp, err := c.client.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	return json.Unmarshal(env.Data, v)
}

func (c *ctl) showStatus() error {
	var st api.StatusResponse
	if err := c.fetch("/api/v1/status", &st); err != nil {
		return err
	}
	fmt.Printf("State:            %s\n", st.State)
	fmt.Printf("Uptime:           %s\n", st.Uptime)
	fmt.Printf("Config assembled: %v\n", st.ConfigAssembled)
	if st.PrefixSource != "" {
		fmt.Printf("Prefix source:    %s\n", st.PrefixSource)
	}
	fmt.Println("DNS64 discovery:")
	fmt.Printf("  Attempts:   %d\n", st.DNS64.Attempts)
	fmt.Printf("  Failures:   %d\n", st.DNS64.Failures)
	if st.DNS64.BackoffSeconds > 0 {
		fmt.Printf("  Backoff:    %ds\n", st.DNS64.BackoffSeconds)
	}
	fmt.Printf("  Discovered: %v\n", st.DNS64.Discovered)
	if st.DNS64.Prefix != "" {
		fmt.Printf("  Prefix:     %s\n", st.DNS64.Prefix)
	}
	return nil
}

func (c *ctl) showConfig() error {
	var info api.ConfigInfo
	if err := c.fetch("/api/v1/config", &info); err != nil {
		return err
	}
	fmt.Printf("Uplink interface:  %s\n", info.UplinkInterface)
	fmt.Printf("MTU:               %s\n", renderMTU(int(info.MTU), info.EffectiveMTU))
	fmt.Printf("IPv4 MTU:          %s\n", renderMTU(int(info.IPv4MTU), info.EffectiveIPv4MTU))
	fmt.Printf("IPv4 local subnet: %s\n", info.IPv4LocalSubnet)
	fmt.Printf("IPv6 local subnet: %s\n", info.IPv6LocalSubnet)
	fmt.Printf("PLAT subnet:       %s\n", info.PlatSubnet)
	if info.DiscoveryHostname != "" {
		fmt.Printf("DNS64 hostname:    %s\n", info.DiscoveryHostname)
	}
	return nil
}

func renderMTU(configured, effective int) string {
	if configured == -1 {
		return fmt.Sprintf("%d (auto)", effective)
	}
	if configured != effective {
		return fmt.Sprintf("%d (configured %d)", effective, configured)
	}
	return fmt.Sprintf("%d", effective)
}

func (c *ctl) showPrefix() error {
	var p api.PrefixInfo
	if err := c.fetch("/api/v1/prefix", &p); err != nil {
		return err
	}
	fmt.Printf("PLAT subnet: %s\n", p.PlatSubnet)
	fmt.Printf("Source:      %s\n", p.Source)
	if p.Hostname != "" {
		fmt.Printf("Hostname:    %s\n", p.Hostname)
	}
	return nil
}

func (c *ctl) showHelp() {
	fmt.Println("Commands:")
	fmt.Println("  status   daemon state and DNS64 discovery progress")
	fmt.Println("  config   assembled configuration and effective MTUs")
	fmt.Println("  prefix   PLAT prefix and how it was obtained")
	fmt.Println("  help     this text")
	fmt.Println("  exit     leave the prompt")
}
