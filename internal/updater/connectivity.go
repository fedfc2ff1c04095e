package updater

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// DefaultProbeTimeout bounds the connectivity precheck.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks basic network reachability before the release API is
// contacted.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// DialProber opens and closes a TCP connection to Address.
type DialProber struct {
	Address string
	Timeout time.Duration
}

// NewDialProber derives a probe address from a base URL such as
// "https://api.github.com". The scheme's default port is used when the URL
// has none.
func NewDialProber(baseURL string) (*DialProber, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing probe URL %q: %w", baseURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("probe URL %q has no host", baseURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return &DialProber{Address: net.JoinHostPort(u.Hostname(), port), Timeout: DefaultProbeTimeout}, nil
}

// Probe implements Prober.
func (p *DialProber) Probe(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return fmt.Errorf("reaching %s: %w", p.Address, err)
	}
	return conn.Close()
}
