package serverset

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// NewProxyDialContext builds a conn.Options.DialContext that tunnels
// outbound connections through the SOCKS5 or HTTP CONNECT proxy described
// by proxyURL (e.g. "socks5://127.0.0.1:1080"), for deployments where the
// directory server sits behind a proxy the server-set's direct dials
// can't reach. Set the result as Options.DialContext before passing
// Options to a ServerSet's GetConnection.
func NewProxyDialContext(proxyURL string) (func(ctx context.Context, network, address string) (net.Conn, error), error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("serverset: invalid proxy URL: %w", err)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("serverset: build proxy dialer: %w", err)
	}

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, address)
		}
		return d.Dial(network, address)
	}, nil
}
