package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// checkProxyTimeout bounds the proxy connectivity check.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 greeting constants.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy verifies that the configured proxy is reachable and speaks
// SOCKS5 without authentication. It returns ProxyStatusOK when no proxy
// is configured.
func (f *Fetcher) CheckProxy(ctx context.Context) ProxyStatus {
	if f.proxyAddress == "" {
		return ProxyStatusOK
	}
	return CheckProxy(ctx, f.proxyAddress)
}

// CheckProxy performs a SOCKS5 greeting against address and reports the
// outcome. Only the method negotiation is exchanged; no CONNECT is sent.
func CheckProxy(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, one method, "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	// 0xFF (no acceptable method) or any other choice means auth is required.
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}
