package logging

import (
	"fmt"
	"net"
	"os"
	"time"
)

// Syslog severity levels (RFC 3164).
const (
	SeverityCrit    = 2
	SeverityError   = 3
	SeverityWarning = 4
	SeverityInfo    = 6
	SeverityDebug   = 7
)

// Syslog facility: daemon (3).
const facilityDaemon = 3

// Client sends UDP syslog messages (RFC 3164).
type Client struct {
	conn     net.Conn
	hostname string
	tag      string
}

// NewClient creates a UDP syslog client for the given host:port
// receiver. tag is the program name in each message.
func NewClient(addr, tag string) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial syslog %s: %w", addr, err)
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}
	if tag == "" {
		tag = "clatd"
	}
	return &Client{conn: conn, hostname: hostname, tag: tag}, nil
}

// Send sends a syslog message with the given severity.
func (c *Client) Send(severity int, msg string) error {
	priority := facilityDaemon*8 + severity
	ts := time.Now().Format(time.Stamp) // "Jan _2 15:04:05"
	line := fmt.Sprintf("<%d>%s %s %s: %s", priority, ts, c.hostname, c.tag, msg)
	_, err := c.conn.Write([]byte(line))
	return err
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
