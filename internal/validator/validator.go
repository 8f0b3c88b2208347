// Package validator checks configured URLs before the server trusts them,
// including a reachability probe for the OIDC discovery document.
package validator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidURL        = errors.New("invalid URL format")
	ErrHTTPSRequired     = errors.New("HTTPS is required")
	ErrPrivateIP         = errors.New("private IP addresses are not allowed")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrInvalidOIDCIssuer = errors.New("invalid OIDC issuer")
)

const (
	maxRedirects = 3
	probeTimeout = 10 * time.Second
)

// Validator performs URL syntax checks and guarded HTTP probes. Outbound
// connections refuse private and reserved addresses unless configured
// otherwise.
type Validator struct {
	client          *http.Client
	allowPrivateIPs bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithAllowPrivateIPs permits probes to private and loopback addresses,
// as needed for local issuers and Docker internal networking.
func WithAllowPrivateIPs() Option {
	return func(v *Validator) {
		v.allowPrivateIPs = true
	}
}

// New builds a Validator with its probe client.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	v.client = v.newProbeClient()
	return v
}

func (v *Validator) newProbeClient() *http.Client {
	redirects := 0
	return &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			DialContext:           v.guardedDial,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          10,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if redirects++; redirects > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// guardedDial resolves the target first and refuses any address that lands
// in private or reserved space.
func (v *Validator) guardedDial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed: %w", err)
	}
	if !v.allowPrivateIPs {
		for _, ip := range ips {
			if isReservedIP(ip) {
				return nil, ErrPrivateIP
			}
		}
	}

	d := &net.Dialer{Timeout: probeTimeout, KeepAlive: 30 * time.Second}
	return d.DialContext(ctx, network, addr)
}

func isReservedIP(ip net.IP) bool {
	return ip != nil && (ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified())
}

// ValidateURL checks that rawURL parses to an http(s) URL with a host.
// With requireHTTPS set, plain http is rejected.
func (v *Validator) ValidateURL(rawURL string, requireHTTPS bool) error {
	if rawURL == "" {
		return ErrInvalidURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: parse error: %w", ErrInvalidURL, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if requireHTTPS && parsed.Scheme != "https" {
		return ErrHTTPSRequired
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	return nil
}

// ValidateOIDCIssuer fetches the issuer's discovery document to confirm the
// configured value points at a live OIDC provider.
func (v *Validator) ValidateOIDCIssuer(ctx context.Context, issuer string) error {
	if err := v.ValidateURL(issuer, !v.allowPrivateIPs); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOIDCIssuer, err)
	}

	discovery := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discovery, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrInvalidOIDCIssuer, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: discovery endpoint returned status %d", ErrInvalidOIDCIssuer, resp.StatusCode)
	}
	return nil
}
