package web

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/printfarm/gcodemux/internal/config"
)

const defaultMaxBytes = 8 << 20

// safeTransport rejects connections to private or loopback IP ranges to
// reduce SSRF risk when fetching client-supplied URLs.
var safeTransport = &http.Transport{
	DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: 5 * time.Second}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
		}

		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			conn.Close()
			return nil, fmt.Errorf("access to private IP %s is denied", ip)
		}

		return conn, nil
	},
}

// Fetcher downloads Gcode documents from client-supplied URLs with a size
// cap and the private-address guard.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// FetcherOption configures the fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client for the fetcher.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a fetcher from config. Zero or missing values fall back
// to a 10 second timeout and an 8 MiB cap.
func NewFetcher(cfg config.FetchConfig, opts ...FetcherOption) *Fetcher {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: safeTransport,
		},
		maxBytes: cfg.MaxBytes,
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxBytes
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one document and returns its bytes.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported URL scheme: must be http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch source: status %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("source too large: %d bytes (max %d)", resp.ContentLength, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("source too large: exceeds %d bytes", f.maxBytes)
	}

	return data, nil
}
