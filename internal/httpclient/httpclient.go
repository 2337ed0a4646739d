package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
	// MaxConnsPerHost should cover a full batch so concurrent pages do not
	// queue behind each other on the same host.
	MaxConnsPerHost int
}

// New returns a client shared by every concurrent generation call.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	perHost := opts.MaxConnsPerHost
	if perHost <= 0 {
		perHost = 20
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: perHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// image edits can take well over a minute before the first byte
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
