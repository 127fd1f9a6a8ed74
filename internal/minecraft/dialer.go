package minecraft

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// ContextDialer resolves the network dialer for the options: direct, or
// through the configured SOCKS5 proxy. Protocol adapters use this to open the
// underlying TCP stream so proxy egress works regardless of the library
// driving the connection.
func (o Options) ContextDialer() (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: 30 * time.Second}
	if o.ProxyAddr == "" {
		return direct, nil
	}

	var auth *proxy.Auth
	if o.ProxyUsername != "" {
		auth = &proxy.Auth{User: o.ProxyUsername, Password: o.ProxyPassword}
	}

	d, err := proxy.SOCKS5("tcp", o.ProxyAddr, auth, direct)
	if err != nil {
		return nil, fmt.Errorf("error building proxy dialer for %s: %w", o.ProxyAddr, err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer for %s does not support context dialing", o.ProxyAddr)
	}
	return cd, nil
}

// Addr returns the host:port the connection targets.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, fmt.Sprintf("%d", o.Port))
}
